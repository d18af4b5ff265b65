package cryptox

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeyFormat selects how key material is written to disk.
type KeyFormat int

const (
	// FormatBase64DER is a single line of base64 over PKCS#8 (private) or
	// PKIX (public) DER.
	FormatBase64DER KeyFormat = iota
	// FormatPEM is a standard "PRIVATE KEY" / "PUBLIC KEY" PEM block.
	FormatPEM
)

// MinRSABits is the smallest modulus accepted for signing keys.
const MinRSABits = 2048

var ErrWeakKey = errors.New("rsa key too small")

// GenerateRSAKey creates a new RSA signing key of the given size.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("%w: %d bits", ErrWeakKey, bits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodePrivateKey serialises key as PKCS#8 in the requested format.
func EncodePrivateKey(key *rsa.PrivateKey, format KeyFormat) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return encode(der, "PRIVATE KEY", format), nil
}

// EncodePublicKey serialises key as PKIX in the requested format.
func EncodePublicKey(key *rsa.PublicKey, format KeyFormat) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return encode(der, "PUBLIC KEY", format), nil
}

func encode(der []byte, blockType string, format KeyFormat) []byte {
	if format == FormatPEM {
		return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(der)))
	base64.StdEncoding.Encode(out, der)
	return out
}

// ParsePrivateKey accepts PEM (PKCS#1 or PKCS#8) or base64 DER (PKCS#8).
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, err := asPEM(data, "PRIVATE KEY")
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(block)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if key.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("private key: %w: %d bits", ErrWeakKey, key.N.BitLen())
	}
	return key, nil
}

// ParsePublicKey accepts PEM (PKIX, PKCS#1 or a certificate) or base64 DER (PKIX).
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, err := asPEM(data, "PUBLIC KEY")
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(block)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if key.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("public key: %w: %d bits", ErrWeakKey, key.N.BitLen())
	}
	return key, nil
}

// asPEM returns data unchanged when it is already PEM, otherwise decodes it
// as base64 DER and wraps it in a block of blockType.
func asPEM(data []byte, blockType string) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty key data")
	}
	if bytes.HasPrefix(trimmed, []byte("-----BEGIN")) {
		return trimmed, nil
	}

	compact := bytes.Join(bytes.Fields(trimmed), nil)
	der := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(der, compact)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der[:n]}), nil
}

// SameRSAKey reports whether priv is the private half of pub.
func SameRSAKey(priv *rsa.PrivateKey, pub *rsa.PublicKey) bool {
	return priv.PublicKey.Equal(pub)
}
