package authflow

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow/cache"
	"github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/notify"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/storage"
	"github.com/MrEthical07/authflow/storage/redisstore"
	"github.com/MrEthical07/authflow/verification"
)

// Builder assembles an Engine. It is single-use: Build fails on a second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  storage.Store

	sender    EmailSender
	auditSink AuditSink
	logger    *slog.Logger

	random io.Reader
	clock  func() time.Time
	cache  cache.Cache
	hasher password.Hasher

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client backing the default store, the comparison
// cache and the send throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides persistence, e.g. with pgstore. Redis, when also
// supplied, still backs the cache and the throttle.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithEmailSender sets code delivery. Without one, codes are appended to the
// Redis stream Config.Redis.OutboxStream.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.sender = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.logger = log
	return b
}

// WithRandom sets the source of secret bytes for codes and tokens.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithClock sets the engine's time source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithCache overrides the comparison cache.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithHasher overrides the password hashing primitive chosen by
// Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		if b.sender == nil {
			return nil, errors.New("email sender or redis client required")
		}
		if b.store == nil {
			return nil, errors.New("store or redis client required")
		}
		if cfg.Verification.ResendCooldown > 0 {
			return nil, errors.New("Verification ResendCooldown requires redis client")
		}
	}

	log := b.logger
	if log == nil {
		log = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- STORE --------
	store := b.store
	if store == nil {
		store = redisstore.New(
			b.redis,
			redisstore.WithPrefix(cfg.Redis.StorePrefix),
			redisstore.WithRetention(cfg.Verification.RecordRetention),
		)
	}

	// Without a sender, deliveries are queued for an out-of-process mailer.
	var sender EmailSender = b.sender
	if sender == nil {
		sender = notify.NewRedisOutbox(b.redis, cfg.Redis.OutboxStream, 0)
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		h, err := password.New(cfg.Password.Algorithm, cfg.Password.BcryptCost)
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	resultCache := b.cache
	if resultCache == nil {
		if b.redis != nil {
			resultCache = cache.NewRedis(b.redis, cfg.Redis.CachePrefix)
		} else {
			resultCache = cache.NewMemory(cfg.Password.CompareCacheEntries)
		}
	}
	var comparerCache password.ResultCache
	if cfg.Password.CompareCacheTTL > 0 {
		comparerCache = resultCache
	}

	// -------- SERVICES --------
	codes := verification.New(store, verification.WithRandom(b.random), verification.WithClock(clock))
	sessions, err := session.New(
		store,
		cfg.Session.TTL,
		cfg.Session.TokenTTL,
		session.WithRandom(b.random),
		session.WithClock(clock),
	)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		store:    store,
		codes:    codes,
		sessions: sessions,
		hasher:   hasher,
		comparer: password.NewComparer(hasher, comparerCache, cfg.Password.CompareCacheTTL, log),
		policy: password.Policy{
			MinLength: cfg.Password.MinLength,
			MaxLength: cfg.Password.MaxLength,
		},
		sender: sender,
		links:  notify.LinkBuilder{BaseURL: cfg.Verification.LinkBaseURL},
		log:    log,
		clock:  clock,
	}
	if b.redis != nil && cfg.Verification.ResendCooldown > 0 {
		engine.throttle = rate.New(b.redis, rate.Config{
			MaxSends: cfg.Verification.MaxSendsPerWindow,
			Window:   cfg.Verification.ResendCooldown,
			Prefix:   cfg.Redis.ThrottlePrefix,
		})
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.initFlowService()

	b.built = true

	return engine, nil
}
