package password

import (
	"strings"
	"testing"
)

func fastArgon2Config() Argon2Config {
	return Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newTestArgon2(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestArgon2HashAndVerify(t *testing.T) {
	h := newTestArgon2(t)

	digest, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", digest)
	}

	ok, err := h.Verify("P@ssw0rd-Ascii", digest)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-password1", digest)
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}
}

func TestArgon2VerifyAcceptsPaddedEncoding(t *testing.T) {
	h := newTestArgon2(t)
	digest, err := h.Hash("padded-secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	parts := strings.Split(digest, "$")
	for len(parts[4])%4 != 0 {
		parts[4] += "="
	}
	ok, err := h.Verify("padded-secret1", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("expected padded salt to verify: ok=%v err=%v", ok, err)
	}
}

func TestArgon2VerifyMalformed(t *testing.T) {
	h := newTestArgon2(t)
	digest, _ := h.Hash("version-test1")

	cases := []string{
		"",
		"not-a-phc-hash",
		strings.Replace(digest, "$v=19$", "$v=18$", 1),
		strings.Replace(digest, "m=8192", "m=1", 1),
		strings.Replace(digest, "argon2id", "argon2i", 1),
		"$argon2id$v=19$m=8192,t=1,p=1$!!$!!",
	}
	for _, c := range cases {
		if _, err := h.Verify("version-test1", c); err == nil {
			t.Fatalf("expected malformed digest %q to fail", c)
		}
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	weak := newTestArgon2(t)
	digest, err := weak.Hash("upgrade-me1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strong, err := NewArgon2(DefaultArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if up, err := strong.NeedsUpgrade(digest); err != nil || !up {
		t.Fatalf("expected upgrade for weaker params: up=%v err=%v", up, err)
	}
	if up, err := weak.NeedsUpgrade(digest); err != nil || up {
		t.Fatalf("expected no upgrade for same params: up=%v err=%v", up, err)
	}
}

func TestArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastArgon2Config()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}
	cfg = fastArgon2Config()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}
}

func TestArgon2HashEmpty(t *testing.T) {
	if _, err := newTestArgon2(t).Hash(""); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}
