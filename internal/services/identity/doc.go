// Package identity creates and holds the local identity material.
//
// Material lives in memory for the process lifetime. When a store is
// configured it can be sealed under a passphrase that passes the strength
// policy and loaded again later.
package identity
