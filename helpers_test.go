package authflow

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/authflow/notify"
	"github.com/MrEthical07/authflow/password"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.TTL = 30 * 24 * time.Hour
	cfg.Session.TokenTTL = 15 * time.Minute
	cfg.Verification.CodeTTL = 20 * time.Minute
	cfg.Verification.LoginCodeTTL = 10 * time.Minute
	cfg.Verification.LinkBaseURL = "https://app.test/auth"
	return cfg
}

func fastHasher(t *testing.T) password.Hasher {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	return h
}

type testEngine struct {
	*Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	sender *notify.Recorder
}

func newTestEngine(t *testing.T, cfg Config, configure func(*Builder)) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	sender := &notify.Recorder{}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithEmailSender(sender).
		WithHasher(fastHasher(t))
	if configure != nil {
		configure(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})

	return &testEngine{Engine: engine, mr: mr, rdb: rdb, sender: sender}
}

// lastCode returns the code in the most recent delivery.
func (te *testEngine) lastCode(t *testing.T) string {
	t.Helper()
	d, ok := te.sender.Last()
	if !ok {
		t.Fatal("expected a delivered code")
	}
	return notify.CodeFromLink(d.Link)
}
