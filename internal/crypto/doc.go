// Package crypto exposes the primitives used by cipherlink.
//
// Contents
//
//   - RSA-OAEP (SHA-256) message encryption and decryption (Encrypt,
//     EncryptPEM, Decrypt)
//   - One-way credential digests computed before transmission
//     (HashCredential)
//   - Credential-seeded, reproducible RSA-2048 key generation (DeriveSeed,
//     GenerateKey)
//   - PEM encoding of identity keys (PKIX public, PKCS8 private)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Keys derived from credentials are only as strong as the password they are
// seeded from. This is a deliberate trade-off that lets a user recover the
// same identity from the same credentials when local storage is lost.
// GenerateKey never reads from crypto/rand; the seed is the only entropy.
package crypto
