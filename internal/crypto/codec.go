package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"cipherlink/internal/domain"
)

// MaxPlaintext is the largest message, in bytes, that fits a single RSA-OAEP
// block under a KeyBits key. Longer messages are rejected, never truncated.
const MaxPlaintext = KeyBits/8 - 2*sha256.Size - 2

// oaepLabel binds ciphertexts to this protocol.
var oaepLabel = []byte("cipherlink/message")

// HashCredential returns the lowercase hex SHA-256 digest of a password. It
// keeps the raw password off the wire; it is not a password hash in the
// server-side sense.
func HashCredential(password string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(password)))
	return hex.EncodeToString(sum[:])
}

// Encrypt seals plaintext to pub with RSA-OAEP and returns base64 ciphertext.
func Encrypt(pub *rsa.PublicKey, plaintext string) (string, error) {
	if pub == nil || pub.N == nil {
		return "", &domain.EncryptionError{Kind: domain.MalformedKey, Err: errors.New("nil public key")}
	}
	limit := pub.Size() - 2*sha256.Size - 2
	if limit <= 0 {
		return "", &domain.EncryptionError{
			Kind: domain.MalformedKey,
			Err:  fmt.Errorf("%d-bit key is too small", pub.N.BitLen()),
		}
	}
	if len(plaintext) > limit {
		return "", &domain.EncryptionError{
			Kind: domain.PayloadTooLarge,
			Err:  fmt.Errorf("%d bytes exceeds the %d byte limit", len(plaintext), limit),
		}
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), oaepLabel)
	if err != nil {
		if errors.Is(err, rsa.ErrMessageTooLong) {
			return "", &domain.EncryptionError{Kind: domain.PayloadTooLarge, Err: err}
		}
		return "", &domain.EncryptionError{Kind: domain.SerializationFailed, Err: err}
	}
	return B64(ct), nil
}

// EncryptPEM parses a recipient's PEM public key and encrypts to it.
func EncryptPEM(pubPEM string, plaintext string) (string, error) {
	pub, err := ParsePublicKeyPEM(pubPEM)
	if err != nil {
		return "", &domain.EncryptionError{Kind: domain.MalformedKey, Err: err}
	}
	return Encrypt(pub, plaintext)
}

// Decrypt opens a base64 RSA-OAEP ciphertext with priv.
//
// A ciphertext that is not well formed for the key size reports Corrupted. A
// well formed ciphertext that fails to open reports KeyMismatch; OAEP cannot
// tell a wrong recipient from tampering.
func Decrypt(priv *rsa.PrivateKey, ciphertext string) (string, error) {
	if priv == nil {
		return "", &domain.DecryptionError{Kind: domain.KeyMismatch, Err: errors.New("no private key")}
	}
	ct, err := UnB64(ciphertext)
	if err != nil {
		return "", &domain.DecryptionError{Kind: domain.Corrupted, Err: err}
	}
	if len(ct) != priv.Size() {
		return "", &domain.DecryptionError{
			Kind: domain.Corrupted,
			Err:  fmt.Errorf("ciphertext is %d bytes, want %d", len(ct), priv.Size()),
		}
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ct, oaepLabel)
	if err != nil {
		return "", &domain.DecryptionError{Kind: domain.KeyMismatch, Err: err}
	}
	defer Wipe(pt)
	return string(pt), nil
}

// B64 encodes ciphertext for the wire: standard alphabet, padded, no newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// UnB64 reverses B64.
func UnB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
