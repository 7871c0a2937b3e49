package authflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/authflow/password"
)

type sessionFileConfig struct {
	ExpiresInMinutes      int `yaml:"expires_in_minutes"`
	TokenExpiresInMinutes int `yaml:"token_expires_in_minutes"`
}

type verificationFileConfig struct {
	ExpiresInMinutes      int    `yaml:"expires_in_minutes"`
	LoginExpiresInMinutes int    `yaml:"login_expires_in_minutes"`
	ResendCooldown        string `yaml:"resend_cooldown"`
	MaxSendsPerWindow     int    `yaml:"max_sends_per_window"`
	LinkBaseURL           string `yaml:"link_base_url"`
	RecordRetention       string `yaml:"record_retention"`
}

type passwordFileConfig struct {
	Algorithm           string `yaml:"algorithm"`
	BcryptCost          int    `yaml:"bcrypt_cost"`
	CompareCacheTTL     string `yaml:"compare_cache_ttl"`
	CompareCacheEntries int    `yaml:"compare_cache_entries"`
	MinLength           int    `yaml:"min_length"`
	MaxLength           int    `yaml:"max_length"`
}

type redisFileConfig struct {
	StorePrefix    string `yaml:"store_prefix"`
	CachePrefix    string `yaml:"cache_prefix"`
	ThrottlePrefix string `yaml:"throttle_prefix"`
	OutboxStream   string `yaml:"outbox_stream"`
}

type auditFileConfig struct {
	Enabled    *bool `yaml:"enabled"`
	BufferSize int   `yaml:"buffer_size"`
	DropIfFull *bool `yaml:"drop_if_full"`
}

type metricsFileConfig struct {
	Enabled          *bool `yaml:"enabled"`
	LatencyHistogram *bool `yaml:"latency_histograms"`
}

// ConfigFile is the YAML layout read by LoadConfigFile. Lifetimes of
// credentials are whole minutes; other durations use time.ParseDuration
// syntax ("90s", "5m").
type ConfigFile struct {
	Session      sessionFileConfig      `yaml:"session"`
	Verification verificationFileConfig `yaml:"verification"`
	Password     passwordFileConfig     `yaml:"password"`
	Redis        redisFileConfig        `yaml:"redis"`
	Audit        auditFileConfig        `yaml:"audit"`
	Metrics      metricsFileConfig      `yaml:"metrics"`
}

// LoadConfigFile reads path and overlays it on DefaultConfig. The result is
// validated.
func LoadConfigFile(path string) (Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config file at %s: %w", path, err)
	}
	return ParseConfig(bytes)
}

// ParseConfig is LoadConfigFile for an in-memory document.
func ParseConfig(data []byte) (Config, error) {
	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("could not parse config yaml: %w", err)
	}

	cfg, err := file.toConfig()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f ConfigFile) toConfig() (Config, error) {
	cfg := DefaultConfig()

	cfg.Session.TTL = minutes(f.Session.ExpiresInMinutes)
	cfg.Session.TokenTTL = minutes(f.Session.TokenExpiresInMinutes)
	cfg.Verification.CodeTTL = minutes(f.Verification.ExpiresInMinutes)
	cfg.Verification.LoginCodeTTL = minutes(f.Verification.LoginExpiresInMinutes)

	if err := parseDuration(f.Verification.ResendCooldown, "verification resend cooldown", &cfg.Verification.ResendCooldown); err != nil {
		return Config{}, err
	}
	if err := parseDuration(f.Verification.RecordRetention, "verification record retention", &cfg.Verification.RecordRetention); err != nil {
		return Config{}, err
	}
	if f.Verification.MaxSendsPerWindow != 0 {
		cfg.Verification.MaxSendsPerWindow = f.Verification.MaxSendsPerWindow
	}
	cfg.Verification.LinkBaseURL = f.Verification.LinkBaseURL

	if f.Password.Algorithm != "" {
		cfg.Password.Algorithm = password.Algorithm(f.Password.Algorithm)
	}
	if f.Password.BcryptCost != 0 {
		cfg.Password.BcryptCost = f.Password.BcryptCost
	}
	if err := parseDuration(f.Password.CompareCacheTTL, "password compare cache ttl", &cfg.Password.CompareCacheTTL); err != nil {
		return Config{}, err
	}
	if f.Password.CompareCacheEntries != 0 {
		cfg.Password.CompareCacheEntries = f.Password.CompareCacheEntries
	}
	if f.Password.MinLength != 0 {
		cfg.Password.MinLength = f.Password.MinLength
	}
	if f.Password.MaxLength != 0 {
		cfg.Password.MaxLength = f.Password.MaxLength
	}

	overlay(&cfg.Redis.StorePrefix, f.Redis.StorePrefix)
	overlay(&cfg.Redis.CachePrefix, f.Redis.CachePrefix)
	overlay(&cfg.Redis.ThrottlePrefix, f.Redis.ThrottlePrefix)
	overlay(&cfg.Redis.OutboxStream, f.Redis.OutboxStream)

	if f.Audit.Enabled != nil {
		cfg.Audit.Enabled = *f.Audit.Enabled
	}
	if f.Audit.BufferSize != 0 {
		cfg.Audit.BufferSize = f.Audit.BufferSize
	}
	if f.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *f.Audit.DropIfFull
	}
	if f.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *f.Metrics.Enabled
	}
	if f.Metrics.LatencyHistogram != nil {
		cfg.Metrics.EnableLatencyHistograms = *f.Metrics.LatencyHistogram
	}

	return cfg, nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func parseDuration(raw, name string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
