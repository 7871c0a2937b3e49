package authflow

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/MrEthical07/authflow/password"
)

// Config holds every engine setting. Build it from DefaultConfig and set the
// four lifetimes: Session.TTL, Session.TokenTTL, Verification.CodeTTL and
// Verification.LoginCodeTTL have no defaults and Validate rejects zero.
type Config struct {
	Session      SessionConfig
	Verification VerificationConfig
	Password     PasswordConfig
	Redis        RedisConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig sets credential lifetimes.
type SessionConfig struct {
	// TTL is the lifetime of a session and its refresh token.
	TTL time.Duration
	// TokenTTL is the lifetime of the short-lived session token.
	TokenTTL time.Duration
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls code lifetimes, delivery and throttling.
type VerificationConfig struct {
	// CodeTTL is the lifetime of email verification codes.
	CodeTTL time.Duration
	// LoginCodeTTL is the lifetime of login and second-factor codes.
	LoginCodeTTL time.Duration

	// ResendCooldown is the throttle window for code delivery per (type,
	// email). Zero disables the throttle.
	ResendCooldown time.Duration
	// MaxSendsPerWindow is the delivery budget within ResendCooldown.
	MaxSendsPerWindow int

	// LinkBaseURL is the page that redeems codes. The raw code is appended as
	// the "code" query parameter. Empty sends the bare code.
	LinkBaseURL string

	// RecordRetention keeps spent codes in Redis past their expiry so late
	// redemptions are reported as expired rather than unknown.
	RecordRetention time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing primitive, the comparison cache and the
// registration strength rules.
type PasswordConfig struct {
	Algorithm  password.Algorithm
	BcryptCost int

	// CompareCacheTTL bounds how long a comparison result is reused, including
	// after an out-of-band password change.
	CompareCacheTTL     time.Duration
	CompareCacheEntries int

	MinLength int
	MaxLength int
}

// RedisConfig sets key prefixes for the Redis-backed components.
type RedisConfig struct {
	StorePrefix    string
	CachePrefix    string
	ThrottlePrefix string
	OutboxStream   string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	maxBcryptCost = 14
	minBcryptCost = password.DefaultBcryptCost
)

// DefaultConfig returns tuned defaults with all four lifetimes unset.
func DefaultConfig() Config {
	return Config{
		Verification: VerificationConfig{
			MaxSendsPerWindow: 1,
			RecordRetention:   24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:           password.AlgorithmBcrypt,
			BcryptCost:          password.DefaultBcryptCost,
			CompareCacheTTL:     300 * time.Second,
			CompareCacheEntries: 10_000,
			MinLength:           8,
			MaxLength:           password.MaxSecretBytes,
		},
		Redis: RedisConfig{
			StorePrefix:    "af",
			CachePrefix:    "afc",
			ThrottlePrefix: "afs",
			OutboxStream:   "af:outbox",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.TokenTTL <= 0 {
		return errors.New("Session TokenTTL must be > 0")
	}
	if c.Session.TokenTTL > c.Session.TTL {
		return errors.New("Session TokenTTL must not exceed Session TTL")
	}

	// Verification
	if c.Verification.CodeTTL <= 0 {
		return errors.New("Verification CodeTTL must be > 0")
	}
	if c.Verification.LoginCodeTTL <= 0 {
		return errors.New("Verification LoginCodeTTL must be > 0")
	}
	if c.Verification.ResendCooldown < 0 {
		return errors.New("Verification ResendCooldown must be >= 0")
	}
	if c.Verification.ResendCooldown > 0 && c.Verification.MaxSendsPerWindow <= 0 {
		return errors.New("Verification MaxSendsPerWindow must be > 0 when ResendCooldown is set")
	}
	if c.Verification.RecordRetention < 0 {
		return errors.New("Verification RecordRetention must be >= 0")
	}
	if c.Verification.LinkBaseURL != "" {
		u, err := url.Parse(c.Verification.LinkBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("Verification LinkBaseURL %q must be an absolute URL", c.Verification.LinkBaseURL)
		}
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmBcrypt:
		if c.Password.BcryptCost < minBcryptCost || c.Password.BcryptCost > maxBcryptCost {
			return fmt.Errorf("Password BcryptCost must be within %d..%d", minBcryptCost, maxBcryptCost)
		}
	case password.AlgorithmArgon2:
	default:
		return fmt.Errorf("unsupported Password Algorithm %q", c.Password.Algorithm)
	}
	if c.Password.CompareCacheTTL < 0 {
		return errors.New("Password CompareCacheTTL must be >= 0")
	}
	if c.Password.CompareCacheEntries < 0 {
		return errors.New("Password CompareCacheEntries must be >= 0")
	}
	if c.Password.MinLength <= 0 {
		return errors.New("Password MinLength must be > 0")
	}
	if c.Password.MaxLength < c.Password.MinLength || c.Password.MaxLength > password.MaxSecretBytes {
		return fmt.Errorf("Password MaxLength must be within MinLength..%d", password.MaxSecretBytes)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
