// Package prekey assembles the public key bundle (identity key, signing key,
// signed pre-key and its signature) and uploads it to the key directory.
package prekey
