// Package cryptox holds the server's cryptographic primitives: argon2id
// password hashing and RSA signing-key generation and encoding.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// PasswordParams are the argon2id cost parameters used for new hashes.
// Stored hashes carry their own parameters, so raising these does not
// invalidate existing accounts.
type PasswordParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultPasswordParams returns the OWASP-recommended argon2id settings.
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// PasswordHasher derives argon2id hashes with a random salt that is returned
// and stored separately from the hash string.
type PasswordHasher struct {
	params  PasswordParams
	observe func(time.Duration)
}

// HasherOption customises a PasswordHasher.
type HasherOption func(*PasswordHasher)

// WithDurationObserver reports how long every key derivation took.
func WithDurationObserver(fn func(time.Duration)) HasherOption {
	return func(h *PasswordHasher) { h.observe = fn }
}

func NewPasswordHasher(params PasswordParams, opts ...HasherOption) *PasswordHasher {
	h := &PasswordHasher{params: params}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Hash derives a hash of password under a fresh salt.
//
// The hash is encoded as $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<key>.
func (h *PasswordHasher) Hash(password string) (string, []byte, error) {
	salt, err := common.RandomBytes(int(h.params.SaltLen))
	if err != nil {
		return "", nil, oops.Code("PASSWORD_SALT_FAILED").Wrap(err)
	}

	key := h.derive(password, salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, salt, nil
}

// Verify reports whether password hashes to encoded under salt.
// A hash that cannot be parsed is an error, never a match.
func (h *PasswordHasher) Verify(password, encoded string, salt []byte) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return false, oops.Code("PASSWORD_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return false, oops.Code("PASSWORD_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("PASSWORD_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code("PASSWORD_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("PASSWORD_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 || iterations == 0 {
		return false, oops.Code("PASSWORD_INVALID_HASH").Errorf("invalid parameters m=%d,t=%d,p=%d", memory, iterations, threads)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("PASSWORD_INVALID_HASH").Wrap(err)
	}
	if len(expected) == 0 || len(expected) > 1<<10 {
		return false, oops.Code("PASSWORD_INVALID_HASH").Errorf("invalid key length: %d", len(expected))
	}
	if len(salt) == 0 {
		return false, oops.Code("PASSWORD_INVALID_HASH").Errorf("empty salt")
	}

	computed := h.derive(password, salt, iterations, memory, uint8(threads), uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *PasswordHasher) derive(password string, salt []byte, iterations, memory uint32, threads uint8, keyLen uint32) []byte {
	start := time.Now()
	pw := []byte(password)
	key := argon2.IDKey(pw, salt, iterations, memory, threads, keyLen)
	common.WipeByteArray(pw)
	if h.observe != nil {
		h.observe(time.Since(start))
	}
	return key
}
