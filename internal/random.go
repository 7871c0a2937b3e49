package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// SecretSize is the number of random bytes behind every code and token.
const SecretSize = 32

// Secret is a raw one-time secret. Its hex form is handed to the caller once;
// only Digest is persisted.
type Secret [SecretSize]byte

var errSecretFormat = errors.New("invalid secret encoding")

// NewSecret reads SecretSize bytes from r, or from crypto/rand when r is nil.
func NewSecret(r io.Reader) (Secret, error) {
	if r == nil {
		r = rand.Reader
	}
	var s Secret
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return s, fmt.Errorf("read random: %w", err)
	}
	return s, nil
}

// String returns the lower-case hex encoding of the secret.
func (s Secret) String() string {
	return hex.EncodeToString(s[:])
}

// Digest returns the hex SHA-256 of the secret's hex encoding, which is the
// lookup key stored for it.
func (s Secret) Digest() string {
	return DigestString(s.String())
}

// ParseSecret decodes a caller-supplied secret. Anything but exactly
// 2*SecretSize hex characters is rejected.
func ParseSecret(raw string) (Secret, error) {
	var s Secret
	if len(raw) != 2*SecretSize {
		return s, errSecretFormat
	}
	if _, err := hex.Decode(s[:], []byte(raw)); err != nil {
		return s, errSecretFormat
	}
	return s, nil
}

// DigestString returns the hex SHA-256 of v.
func DigestString(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
