// Package verification manages one-time verification codes: minting,
// invalidating outstanding codes, and exactly-once consumption.
//
// A code's raw secret is returned to the caller exactly once; only its digest
// is persisted. Expiry is evaluated at read time against the injected clock.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage"
)

// Service implements the verification code lifecycle on top of a store.
type Service struct {
	store storage.VerificationStore
	rand  io.Reader
	now   func() time.Time
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

// New returns a Service persisting codes in store.
func New(store storage.VerificationStore, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate mints a code of typ for email, bound to callerState and valid until
// expiresAt. It returns the raw secret and the persisted record. Outstanding
// codes are not touched; callers invalidate them first.
func (s *Service) Generate(
	ctx context.Context,
	log *slog.Logger,
	typ model.CodeType,
	email, callerState string,
	expiresAt time.Time,
) (string, *model.VerificationCode, error) {
	now := s.now()
	if !typ.Valid() {
		return "", nil, fmt.Errorf("%w: unknown code type %q", autherr.ErrInvalidRequest, typ)
	}
	if !expiresAt.After(now) {
		return "", nil, fmt.Errorf("%w: code expiry must be in the future", autherr.ErrInvalidRequest)
	}

	secret, err := internal.NewSecret(s.rand)
	if err != nil {
		return "", nil, autherr.Unavailable("generate code", err)
	}

	rec := &model.VerificationCode{
		CodeDigest:  secret.Digest(),
		Type:        typ,
		Email:       email,
		CallerState: callerState,
		CreatedMs:   now.UnixMilli(),
		ExpiresMs:   expiresAt.UnixMilli(),
	}
	if err := s.store.SaveVerificationCode(ctx, log, rec); err != nil {
		return "", nil, autherr.Unavailable("save code", err)
	}

	storage.Logger(log).DebugContext(ctx, "verification code issued", "type", string(typ), "expires_ms", rec.ExpiresMs)
	return secret.String(), rec, nil
}

// InvalidateOutstanding marks every currently valid code of typ for email as
// invalidated.
func (s *Service) InvalidateOutstanding(ctx context.Context, log *slog.Logger, typ model.CodeType, email string) error {
	if err := s.store.InvalidateVerificationCodes(ctx, log, typ, email, s.now().UnixMilli()); err != nil {
		return autherr.Unavailable("invalidate codes", err)
	}
	return nil
}

// Consume validates raw against expectedCallerState and marks it consumed. It
// returns the record as it was before consumption. Failures are checked in
// this order: not found, already consumed, invalidated, expired, state
// mismatch. Among concurrent consumers of the same code exactly one succeeds.
func (s *Service) Consume(ctx context.Context, log *slog.Logger, raw, expectedCallerState string) (*model.VerificationCode, error) {
	rec, err := s.Lookup(ctx, log, raw, true)
	if err != nil {
		return nil, err
	}

	nowMs := s.now().UnixMilli()
	if err := classify(rec, nowMs); err != nil {
		return nil, err
	}
	if rec.CallerState != expectedCallerState {
		return nil, autherr.ErrStateMismatch
	}

	err = s.store.ConsumeVerificationCode(ctx, log, rec.CodeDigest, nowMs)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, storage.ErrConflict):
		return nil, s.classifyLostRace(ctx, log, rec.CodeDigest)
	case errors.Is(err, storage.ErrNotFound):
		return nil, autherr.ErrCodeNotFound
	default:
		return nil, autherr.Unavailable("consume code", err)
	}
}

// Lookup returns the record for raw without changing it. When mustExist is
// false a missing or malformed code yields (nil, nil).
func (s *Service) Lookup(ctx context.Context, log *slog.Logger, raw string, mustExist bool) (*model.VerificationCode, error) {
	secret, err := internal.ParseSecret(raw)
	if err != nil {
		return missing(mustExist)
	}

	rec, err := s.store.GetVerificationByDigest(ctx, log, secret.Digest())
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, storage.ErrNotFound):
		return missing(mustExist)
	default:
		return nil, autherr.Unavailable("lookup code", err)
	}
}

func (s *Service) classifyLostRace(ctx context.Context, log *slog.Logger, digest string) error {
	storage.Logger(log).InfoContext(ctx, "verification code consumed concurrently")
	rec, err := s.store.GetVerificationByDigest(ctx, log, digest)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return autherr.ErrCodeNotFound
		}
		return autherr.Unavailable("lookup code", err)
	}
	if !rec.Consumed() && rec.Invalidated() {
		return autherr.ErrCodeInvalidated
	}
	return autherr.ErrCodeConsumed
}

func classify(rec *model.VerificationCode, nowMs int64) error {
	switch {
	case rec.Consumed():
		return autherr.ErrCodeConsumed
	case rec.Invalidated():
		return autherr.ErrCodeInvalidated
	case rec.Expired(nowMs):
		return autherr.ErrCodeExpired
	}
	return nil
}

func missing(mustExist bool) (*model.VerificationCode, error) {
	if mustExist {
		return nil, autherr.ErrCodeNotFound
	}
	return nil, nil
}
