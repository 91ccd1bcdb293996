// Package store provides persistence for the client-local session record.
//
// It contains two implementations of domain.SessionStore:
//   - BoltStore keeps the record in a bbolt database under the "session"
//     bucket, one key per field (token, name, pubKey, prvKey).
//   - FileStore keeps the record as a JSON file replaced atomically on write.
//
// Both are safe for concurrent use. Files are created with mode 0600 because
// the record carries the PKCS8 private key.
package store
