package crypto

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeyBits is the identity key size.
	KeyBits = 2048
	// PublicExponent is the RSA public exponent of every generated key.
	PublicExponent = 65537

	// primeRounds is the Miller-Rabin round count; math/big picks its bases
	// deterministically from the candidate, so results are reproducible.
	primeRounds = 20
	// maxPrimeCandidates bounds the incremental search from one starting point.
	maxPrimeCandidates = 1 << 16
)

var (
	keygenInfo = []byte("cipherlink rsa keygen v1")

	errSeedExhausted = errors.New("key derivation stream exhausted")
	errNoPrime       = errors.New("no prime found near starting point")
)

// DeriveSeed returns SHA-256(username || passwordDigest). The same credentials
// always produce the same seed.
func DeriveSeed(username, passwordDigest string) []byte {
	sum := sha256.Sum256([]byte(username + passwordDigest))
	return sum[:]
}

// GenerateKey builds an RSA key of the given size from seed alone.
//
// Primes are drawn from an HKDF-SHA256 stream keyed by seed: each draw fixes
// the top two bits and the low bit, then searches upward in steps of two for a
// probable prime p with gcd(e, p-1) = 1. Given the same seed and size the
// result is byte-for-byte identical. The search checks ctx between candidates.
func GenerateKey(ctx context.Context, seed []byte, bits int) (*rsa.PrivateKey, error) {
	if bits < 1024 || bits%16 != 0 {
		return nil, fmt.Errorf("unsupported key size %d", bits)
	}
	if len(seed) == 0 {
		return nil, errors.New("empty seed")
	}
	stream := hkdf.New(sha256.New, seed, nil, keygenInfo)
	e := big.NewInt(PublicExponent)

	for {
		p, err := nextPrime(ctx, stream, bits/2, e)
		if err != nil {
			return nil, err
		}
		q, err := nextPrime(ctx, stream, bits/2, e)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}

		one := big.NewInt(1)
		pm1 := new(big.Int).Sub(p, one)
		qm1 := new(big.Int).Sub(q, one)
		phi := new(big.Int).Mul(pm1, qm1)
		d := new(big.Int).ModInverse(e, phi)
		if d == nil {
			continue
		}

		key := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: PublicExponent},
			D:         d,
			Primes:    []*big.Int{p, q},
		}
		key.Precompute()
		if err := key.Validate(); err != nil {
			return nil, fmt.Errorf("validate derived key: %w", err)
		}
		return key, nil
	}
}

// nextPrime draws a starting point of the given size from r and walks upward.
func nextPrime(ctx context.Context, r io.Reader, bits int, e *big.Int) (*big.Int, error) {
	buf := make([]byte, bits/8)
	defer Wipe(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errSeedExhausted
		}
		buf[0] |= 0xc0
		buf[len(buf)-1] |= 1

		cand := new(big.Int).SetBytes(buf)
		two := big.NewInt(2)
		one := big.NewInt(1)
		gcd := new(big.Int)
		pm1 := new(big.Int)

		for i := 0; i < maxPrimeCandidates; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if cand.BitLen() != bits {
				break
			}
			if cand.ProbablyPrime(primeRounds) {
				pm1.Sub(cand, one)
				if gcd.GCD(nil, nil, e, pm1).Cmp(one) == 0 {
					return cand, nil
				}
			}
			cand.Add(cand, two)
		}
		if cand.BitLen() == bits {
			return nil, errNoPrime
		}
		// Overflowed the bit length; draw a fresh starting point.
	}
}
