package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	publicKeyPEMType  = "PUBLIC KEY"
	privateKeyPEMType = "PRIVATE KEY"
)

var errNoPEMBlock = errors.New("no PEM block found")

// MarshalPublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" PEM block. This is
// the textual form exchanged with the relay and embedded in roster entries.
func MarshalPublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der})), nil
}

// ParsePublicKeyPEM decodes a PKIX PEM public key. Only RSA keys are accepted.
func ParsePublicKeyPEM(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errNoPEMBlock
	}
	if block.Type != publicKeyPEMType {
		return nil, fmt.Errorf("unexpected PEM type %q", block.Type)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", key)
	}
	return pub, nil
}

// MarshalPrivateKeyPEM encodes priv as a PKCS8 "PRIVATE KEY" PEM block.
func MarshalPrivateKeyPEM(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", err
	}
	defer Wipe(der)
	return string(pem.EncodeToMemory(&pem.Block{Type: privateKeyPEMType, Bytes: der})), nil
}

// ParsePrivateKeyPEM decodes a PKCS8 PEM private key. Only RSA keys are accepted.
func ParsePrivateKeyPEM(s string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errNoPEMBlock
	}
	if block.Type != privateKeyPEMType {
		return nil, fmt.Errorf("unexpected PEM type %q", block.Type)
	}
	defer Wipe(block.Bytes)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return priv, nil
}
