// Package storage defines the persistence contract the authentication engine
// depends on.
//
// # Architecture boundaries
//
// Implementations own persistence and the atomicity of code consumption. They
// do NOT decide whether a missing record is an error for the caller, generate
// secrets, or classify failures for clients; those belong to the verification,
// session and authflow packages.
//
// # What this package must NOT do
//
//   - Store or log raw secrets. Only digests cross this boundary.
//   - Retry failed backend calls.
package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/authflow/model"
)

var (
	// ErrNotFound is returned by getters when no record matches.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate is returned when a unique key (user id, email, digest) is already taken.
	ErrDuplicate = errors.New("storage: duplicate record")
	// ErrConflict is returned by ConsumeVerificationCode when the compare-and-set
	// finds the code already consumed or invalidated.
	ErrConflict = errors.New("storage: concurrent update lost")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// UserStore persists accounts and their login emails.
type UserStore interface {
	InsertUser(ctx context.Context, log *slog.Logger, u *model.User) error
	// GetUserByEmail resolves the owner of email. ErrNotFound when the email is
	// unclaimed.
	GetUserByEmail(ctx context.Context, log *slog.Logger, email string) (*model.User, error)
	// InsertLoginEmail claims email for a user. ErrDuplicate when already claimed.
	InsertLoginEmail(ctx context.Context, log *slog.Logger, e *model.LoginEmail) error
	MarkEmailVerified(ctx context.Context, log *slog.Logger, email string, nowMs int64) error
}

// VerificationStore persists verification code records keyed by digest.
type VerificationStore interface {
	// InvalidateVerificationCodes sets InvalidatedMs=nowMs on every code of the
	// given type and email that is neither consumed, invalidated nor expired.
	InvalidateVerificationCodes(ctx context.Context, log *slog.Logger, typ model.CodeType, email string, nowMs int64) error
	SaveVerificationCode(ctx context.Context, log *slog.Logger, c *model.VerificationCode) error
	GetVerificationByDigest(ctx context.Context, log *slog.Logger, digest string) (*model.VerificationCode, error)
	// ConsumeVerificationCode atomically sets ConsumedMs=nowMs when the code is
	// neither consumed nor invalidated. ErrConflict when that condition fails,
	// ErrNotFound when the digest is unknown.
	ConsumeVerificationCode(ctx context.Context, log *slog.Logger, digest string, nowMs int64) error
}

// SessionStore persists sessions and their access tokens.
type SessionStore interface {
	InsertSession(ctx context.Context, log *slog.Logger, s *model.Session) error
	InsertSessionToken(ctx context.Context, log *slog.Logger, t *model.SessionToken) error
}

// Store is the full contract.
type Store interface {
	UserStore
	VerificationStore
	SessionStore
}

// Logger returns log, or a logger discarding everything when log is nil.
func Logger(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.New(slog.DiscardHandler)
}
