package password

import (
	"fmt"
	"unicode"

	"github.com/MrEthical07/authflow/autherr"
)

// Policy holds the strength rules applied to new passwords.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy returns the rules used when none are configured.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: MaxSecretBytes}
}

// Validate returns an error matching autherr.ErrWeakPassword when secret breaks
// a rule. Lengths are counted in bytes.
func (p Policy) Validate(secret string) error {
	minLen, maxLen := p.MinLength, p.MaxLength
	if minLen <= 0 {
		minLen = 8
	}
	if maxLen <= 0 || maxLen > MaxSecretBytes {
		maxLen = MaxSecretBytes
	}

	if len(secret) < minLen {
		return fmt.Errorf("%w: shorter than %d bytes", autherr.ErrWeakPassword, minLen)
	}
	if len(secret) > maxLen {
		return fmt.Errorf("%w: longer than %d bytes", autherr.ErrWeakPassword, maxLen)
	}

	var letter, digit bool
	for _, r := range secret {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: needs at least one letter and one digit", autherr.ErrWeakPassword)
	}
	return nil
}
