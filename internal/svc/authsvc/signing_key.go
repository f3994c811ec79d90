package authsvc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const signingKeyBits = 2048

// ErrInvalidKey is returned when a key file holds no RSA private key.
var ErrInvalidKey = errors.New("invalid signing key")

// NewSigningKey generates an RSA key for signing access tokens.
func NewSigningKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return key, nil
}

// ParseSigningKey parses a PEM encoded RSA key in PKCS #8 or PKCS #1 form.
func ParseSigningKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Join(ErrInvalidKey, err)
		}

		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Join(ErrInvalidKey, err)
		}

		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an RSA key", ErrInvalidKey, key)
		}

		return rsaKey, nil
	default:
		return nil, fmt.Errorf("%w: PEM block %q", ErrInvalidKey, block.Type)
	}
}

// MarshalSigningKey encodes key as a PKCS #8 PEM block.
func MarshalSigningKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil //nolint:exhaustruct
}

// LoadSigningKey reads the key at path. A missing file is replaced by a new
// key readable by the owner only.
func LoadSigningKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return ParseSigningKey(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key: %w", err)
	}

	key, err := NewSigningKey()
	if err != nil {
		return nil, err
	}

	if data, err = MarshalSigningKey(key); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}

	return key, nil
}
