package password

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSecretBytes is bcrypt's input limit; longer secrets would be truncated.
const MaxSecretBytes = 72

var (
	ErrEmptySecret   = errors.New("password: empty secret")
	ErrSecretTooLong = fmt.Errorf("password: secret longer than %d bytes", MaxSecretBytes)
)

// Hasher is a slow, salted, one-way secret hashing primitive.
type Hasher interface {
	Hash(secret string) (string, error)
	// Verify reports whether secret matches digest. It errors only when digest
	// cannot be interpreted.
	Verify(secret, digest string) (bool, error)
}

// Algorithm names a Hasher implementation.
type Algorithm string

const (
	AlgorithmBcrypt Algorithm = "bcrypt"
	AlgorithmArgon2 Algorithm = "argon2id"
)

// New builds the hasher named by alg. bcryptCost is ignored for argon2id.
func New(alg Algorithm, bcryptCost int) (Hasher, error) {
	switch Algorithm(strings.ToLower(string(alg))) {
	case "", AlgorithmBcrypt:
		if bcryptCost == 0 {
			bcryptCost = DefaultBcryptCost
		}
		return NewBcrypt(bcryptCost)
	case AlgorithmArgon2:
		return NewArgon2(DefaultArgon2Config())
	default:
		return nil, fmt.Errorf("password: unknown algorithm %q", alg)
	}
}
