// Package pgstore implements storage.Store on PostgreSQL through database/sql
// and the pgx driver. Code consumption is a conditional UPDATE, so the
// database row lock is the compare-and-set.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgErrUniqueViolation = "23505"

// DBTX is the subset of database/sql used by the store. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store.
type Store struct {
	db DBTX
}

var _ storage.Store = (*Store)(nil)

// New returns a Store executing against db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case isUniqueViolation(err):
		return storage.ErrDuplicate
	default:
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
}

func nullMs(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullMs(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return model.Ms(v.Int64)
}

func (s *Store) InsertUser(ctx context.Context, log *slog.Logger, u *model.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, name, password_hash, banned, login_method, second_factor, created_ms)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Name, u.PasswordHash, u.Banned, string(u.LoginMethod), u.SecondFactorEnabled, u.CreatedMs)
	if err = classify(err); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		storage.Logger(log).WarnContext(ctx, "insert user failed", "user_id", u.ID, "error", err)
	}
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, log *slog.Logger, email string) (*model.User, error) {
	var (
		u      model.User
		method string
	)
	err := s.db.QueryRowContext(ctx, `
		select u.id, u.name, u.password_hash, u.banned, u.login_method, u.second_factor, u.created_ms
		from login_emails e
		join users u on u.id = e.user_id
		where e.email = $1`, email).
		Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Banned, &method, &u.SecondFactorEnabled, &u.CreatedMs)
	if err != nil {
		return nil, classify(err)
	}
	u.LoginMethod = model.LoginMethod(method)
	return &u, nil
}

func (s *Store) InsertLoginEmail(ctx context.Context, log *slog.Logger, e *model.LoginEmail) error {
	_, err := s.db.ExecContext(ctx, `
		insert into login_emails (email, user_id, verified_ms, created_ms)
		values ($1, $2, $3, $4)`,
		e.Email, e.UserID, nullMs(e.VerifiedMs), e.CreatedMs)
	return classify(err)
}

func (s *Store) MarkEmailVerified(ctx context.Context, log *slog.Logger, email string, nowMs int64) error {
	res, err := s.db.ExecContext(ctx, `
		update login_emails set verified_ms = coalesce(verified_ms, $1)
		where email = $2`, nowMs, email)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) InvalidateVerificationCodes(ctx context.Context, log *slog.Logger, typ model.CodeType, email string, nowMs int64) error {
	res, err := s.db.ExecContext(ctx, `
		update verification_codes set invalidated_ms = $1
		where type = $2 and email = $3
		  and consumed_ms is null and invalidated_ms is null
		  and expires_ms >= $1`, nowMs, string(typ), email)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		storage.Logger(log).DebugContext(ctx, "invalidated outstanding codes", "type", string(typ), "count", n)
	}
	return nil
}

func (s *Store) SaveVerificationCode(ctx context.Context, log *slog.Logger, c *model.VerificationCode) error {
	_, err := s.db.ExecContext(ctx, `
		insert into verification_codes
			(code_digest, type, email, caller_state, created_ms, expires_ms, consumed_ms, invalidated_ms)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.CodeDigest, string(c.Type), c.Email, c.CallerState, c.CreatedMs, c.ExpiresMs,
		nullMs(c.ConsumedMs), nullMs(c.InvalidatedMs))
	if err = classify(err); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		storage.Logger(log).WarnContext(ctx, "save verification code failed", "type", string(c.Type), "error", err)
	}
	return err
}

func (s *Store) GetVerificationByDigest(ctx context.Context, log *slog.Logger, digest string) (*model.VerificationCode, error) {
	var (
		c                     model.VerificationCode
		typ                   string
		consumed, invalidated sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		select code_digest, type, email, caller_state, created_ms, expires_ms, consumed_ms, invalidated_ms
		from verification_codes where code_digest = $1`, digest).
		Scan(&c.CodeDigest, &typ, &c.Email, &c.CallerState, &c.CreatedMs, &c.ExpiresMs, &consumed, &invalidated)
	if err != nil {
		return nil, classify(err)
	}
	c.Type = model.CodeType(typ)
	c.ConsumedMs = fromNullMs(consumed)
	c.InvalidatedMs = fromNullMs(invalidated)
	return &c, nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, log *slog.Logger, digest string, nowMs int64) error {
	res, err := s.db.ExecContext(ctx, `
		update verification_codes set consumed_ms = $1
		where code_digest = $2 and consumed_ms is null and invalidated_ms is null`, nowMs, digest)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 1 {
		return nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, `select 1 from verification_codes where code_digest = $1`, digest).Scan(&one)
	if err != nil {
		return classify(err)
	}
	return storage.ErrConflict
}

func (s *Store) InsertSession(ctx context.Context, log *slog.Logger, sess *model.Session) error {
	var ua sql.NullString
	if sess.UserAgent != nil {
		ua = sql.NullString{String: *sess.UserAgent, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, user_agent, ip, refresh_digest, invalidated_ms, created_ms, expires_ms)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.UserID, ua, sess.IP, sess.RefreshSecretDigest, nullMs(sess.InvalidatedMs), sess.CreatedMs, sess.ExpiresMs)
	if err = classify(err); err != nil {
		storage.Logger(log).WarnContext(ctx, "insert session failed", "session_id", sess.ID, "error", err)
	}
	return err
}

func (s *Store) InsertSessionToken(ctx context.Context, log *slog.Logger, t *model.SessionToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into session_tokens (token_digest, session_id, created_ms, expires_ms)
		values ($1, $2, $3, $4)`,
		t.TokenDigest, t.SessionID, t.CreatedMs, t.ExpiresMs)
	return classify(err)
}
