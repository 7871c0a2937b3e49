package internal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewSecretUsesInjectedSource(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xab}, SecretSize))
	s, err := NewSecret(src)
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if s.String() != strings.Repeat("ab", SecretSize) {
		t.Fatalf("unexpected secret %s", s)
	}
	if len(s.Digest()) != 64 || s.Digest() == s.String() {
		t.Fatalf("unexpected digest %s", s.Digest())
	}
}

func TestNewSecretShortSource(t *testing.T) {
	_, err := NewSecret(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("expected error for short random source")
	}
}

func TestNewSecretDefaultsToCryptoRand(t *testing.T) {
	a, err := NewSecret(nil)
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	b, _ := NewSecret(nil)
	if a == b {
		t.Fatal("two random secrets collided")
	}
}

func TestParseSecretRoundTrip(t *testing.T) {
	s, _ := NewSecret(nil)
	got, err := ParseSecret(s.String())
	if err != nil || got != s {
		t.Fatalf("ParseSecret(%s) = %v, %v", s, got, err)
	}
	if got.Digest() != DigestString(s.String()) {
		t.Fatal("digest mismatch")
	}
}

func FuzzParseSecret(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add(strings.Repeat("0", 64))
	f.Add(strings.Repeat("z", 64))
	f.Add(strings.Repeat("A", 64))

	f.Fuzz(func(t *testing.T, raw string) {
		s, err := ParseSecret(raw)
		if err != nil {
			if !errors.Is(err, errSecretFormat) {
				t.Fatalf("unexpected error type: %v", err)
			}
			return
		}
		if !strings.EqualFold(s.String(), raw) {
			t.Fatalf("round trip mismatch: %q vs %q", s.String(), raw)
		}
	})
}
