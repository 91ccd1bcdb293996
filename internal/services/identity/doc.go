// Package identity is the key manager of the client.
//
// It derives the RSA identity key pair from the user's credentials, runs that
// generation off the caller's goroutine, and persists the key pair together
// with the relay token through a domain.SessionStore so a session can resume
// after a restart.
package identity
