// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, relay client and services from Config and
// exposes them via the Wire struct for commands to use. With no home
// directory everything lives in memory, which is how an ephemeral chat
// session runs.
package app
