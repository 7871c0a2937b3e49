package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage"
	"github.com/oklog/ulid/v2"
)

// Tokens is the credential pair handed to a client after a successful login.
// The secrets are never persisted; only their digests are.
type Tokens struct {
	SessionID      string
	SessionToken   string
	RefreshToken   string
	ExpiresAt      time.Time
	TokenExpiresAt time.Time
}

// Service issues sessions.
type Service struct {
	store      storage.SessionStore
	sessionTTL time.Duration
	tokenTTL   time.Duration
	rand       io.Reader
	now        func() time.Time

	entropyMu sync.Mutex
	entropy   io.Reader
}

// Option customizes a Service.
type Option func(*Service)

// WithRandom sets the source of secret bytes. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Service issuing sessions that live for sessionTTL and access
// tokens that live for tokenTTL. Both must be positive.
func New(store storage.SessionStore, sessionTTL, tokenTTL time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if sessionTTL <= 0 || tokenTTL <= 0 {
		return nil, errors.New("session: ttls must be positive")
	}
	s := &Service{
		store:      store,
		sessionTTL: sessionTTL,
		tokenTTL:   tokenTTL,
		now:        time.Now,
		entropy:    ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a session for userID and its first access token. An empty
// userAgent is stored as absent.
//
// The session row is written before the token row; if the token write fails
// the session row is left in place.
func (s *Service) Issue(ctx context.Context, log *slog.Logger, userID, userAgent, ip string) (*Tokens, error) {
	refresh, err := internal.NewSecret(s.rand)
	if err != nil {
		return nil, autherr.Unavailable("issue session", err)
	}
	access, err := internal.NewSecret(s.rand)
	if err != nil {
		return nil, autherr.Unavailable("issue session", err)
	}

	now := s.now()
	expires := now.Add(s.sessionTTL)
	tokenExpires := now.Add(s.tokenTTL)

	sess := &model.Session{
		ID:                  s.newID(now),
		UserID:              userID,
		IP:                  ip,
		RefreshSecretDigest: refresh.Digest(),
		CreatedMs:           now.UnixMilli(),
		ExpiresMs:           expires.UnixMilli(),
	}
	if userAgent != "" {
		sess.UserAgent = &userAgent
	}
	if err := s.store.InsertSession(ctx, log, sess); err != nil {
		return nil, autherr.Unavailable("insert session", err)
	}

	tok := &model.SessionToken{
		TokenDigest: access.Digest(),
		SessionID:   sess.ID,
		CreatedMs:   now.UnixMilli(),
		ExpiresMs:   tokenExpires.UnixMilli(),
	}
	if err := s.store.InsertSessionToken(ctx, log, tok); err != nil {
		return nil, autherr.Unavailable("insert session token", err)
	}

	storage.Logger(log).InfoContext(ctx, "session issued", "session_id", sess.ID, "user_id", userID)
	return &Tokens{
		SessionID:      sess.ID,
		SessionToken:   access.String(),
		RefreshToken:   refresh.String(),
		ExpiresAt:      time.UnixMilli(sess.ExpiresMs),
		TokenExpiresAt: time.UnixMilli(tok.ExpiresMs),
	}, nil
}

// newID returns a ULID, lexically sortable by creation time.
func (s *Service) newID(now time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}
