package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long a verification record outlives its expiry, so
// that late attempts are reported as expired rather than unknown.
const DefaultRetention = 24 * time.Hour

// insertHashLua writes a hash only when the key does not exist yet.
// KEYS[1] = hash key
// ARGV    = field/value pairs
//
// Returns 1 on success or error "duplicate".
var insertHashLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {err='duplicate'}
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// consumeCodeLua atomically marks a code consumed.
// KEYS[1] = code key
// ARGV[1] = now (unix ms)
//
// Returns 1 on success or error "not_found" / "conflict".
var consumeCodeLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
local state = redis.call('HMGET', KEYS[1], 'consumed_ms', 'invalidated_ms')
if (state[1] and state[1] ~= '') or (state[2] and state[2] ~= '') then
  return {err='conflict'}
end
redis.call('HSET', KEYS[1], 'consumed_ms', ARGV[1])
return 1
`)

// invalidateCodesLua invalidates every live code listed in an index set and
// prunes index entries that can no longer become valid.
// KEYS[1] = index set key
// ARGV[1] = now (unix ms)
// ARGV[2] = code key prefix
//
// Returns the number of codes invalidated.
var invalidateCodesLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local n = 0
for _, digest in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = ARGV[2] .. digest
  local state = redis.call('HMGET', key, 'consumed_ms', 'invalidated_ms', 'expires_ms')
  if not state[3] then
    redis.call('SREM', KEYS[1], digest)
  elseif (state[1] and state[1] ~= '') or (state[2] and state[2] ~= '') then
    redis.call('SREM', KEYS[1], digest)
  elseif tonumber(state[3]) < now then
    redis.call('SREM', KEYS[1], digest)
  else
    redis.call('HSET', key, 'invalidated_ms', ARGV[1])
    redis.call('SREM', KEYS[1], digest)
    n = n + 1
  end
end
return n
`)

// markVerifiedLua records the first verification time of an email.
// KEYS[1] = email key
// ARGV[1] = now (unix ms)
var markVerifiedLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
local cur = redis.call('HGET', KEYS[1], 'verified_ms')
if not cur or cur == '' then
  redis.call('HSET', KEYS[1], 'verified_ms', ARGV[1])
end
return 1
`)

// Store implements storage.Store on Redis hashes.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithPrefix sets the key namespace. Defaults to "af".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention sets how long verification records are kept past expiry.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// New returns a Store using redisClient.
func New(redisClient redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:     redisClient,
		prefix:    "af",
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.Store = (*Store)(nil)

func (s *Store) userKey(id string) string { return s.prefix + ":user:" + id }
func (s *Store) emailKey(email string) string { return s.prefix + ":email:" + email }
func (s *Store) codePrefix() string { return s.prefix + ":code:" }
func (s *Store) codeKey(digest string) string { return s.codePrefix() + digest }
func (s *Store) sessionKey(id string) string { return s.prefix + ":session:" + id }
func (s *Store) refreshKey(digest string) string { return s.prefix + ":refresh:" + digest }
func (s *Store) tokenKey(digest string) string { return s.prefix + ":token:" + digest }

func (s *Store) codeIndexKey(typ model.CodeType, email string) string {
	return s.prefix + ":codes:" + string(typ) + ":" + email
}

func (s *Store) InsertUser(ctx context.Context, log *slog.Logger, u *model.User) error {
	err := s.insertHash(ctx, s.userKey(u.ID),
		"id", u.ID,
		"name", u.Name,
		"password_hash", u.PasswordHash,
		"banned", formatBool(u.Banned),
		"login_method", string(u.LoginMethod),
		"second_factor", formatBool(u.SecondFactorEnabled),
		"created_ms", strconv.FormatInt(u.CreatedMs, 10),
	)
	if err != nil {
		storage.Logger(log).WarnContext(ctx, "insert user failed", "user_id", u.ID, "error", err)
	}
	return err
}

func (s *Store) InsertLoginEmail(ctx context.Context, log *slog.Logger, e *model.LoginEmail) error {
	err := s.insertHash(ctx, s.emailKey(e.Email),
		"email", e.Email,
		"user_id", e.UserID,
		"verified_ms", formatMs(e.VerifiedMs),
		"created_ms", strconv.FormatInt(e.CreatedMs, 10),
	)
	if err != nil && !errors.Is(err, storage.ErrDuplicate) {
		storage.Logger(log).WarnContext(ctx, "insert login email failed", "error", err)
	}
	return err
}

func (s *Store) insertHash(ctx context.Context, key string, fields ...any) error {
	err := insertHashLua.Run(ctx, s.redis, []string{key}, fields...).Err()
	if err == nil {
		return nil
	}
	if err.Error() == "duplicate" {
		return storage.ErrDuplicate
	}
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}

func (s *Store) GetUserByEmail(ctx context.Context, log *slog.Logger, email string) (*model.User, error) {
	userID, err := s.redis.HGet(ctx, s.emailKey(email), "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	fields, err := s.redis.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		storage.Logger(log).WarnContext(ctx, "login email points at missing user", "user_id", userID)
		return nil, storage.ErrNotFound
	}
	return decodeUser(fields)
}

func (s *Store) MarkEmailVerified(ctx context.Context, log *slog.Logger, email string, nowMs int64) error {
	err := markVerifiedLua.Run(ctx, s.redis, []string{s.emailKey(email)}, nowMs).Err()
	if err == nil {
		return nil
	}
	if err.Error() == "not_found" {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
}

func (s *Store) InvalidateVerificationCodes(ctx context.Context, log *slog.Logger, typ model.CodeType, email string, nowMs int64) error {
	n, err := invalidateCodesLua.Run(ctx, s.redis,
		[]string{s.codeIndexKey(typ, email)},
		nowMs,
		s.codePrefix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if n > 0 {
		storage.Logger(log).DebugContext(ctx, "invalidated outstanding codes", "type", string(typ), "count", n)
	}
	return nil
}

func (s *Store) SaveVerificationCode(ctx context.Context, log *slog.Logger, c *model.VerificationCode) error {
	ttl := time.Duration(c.ExpiresMs-c.CreatedMs)*time.Millisecond + s.retention
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	key := s.codeKey(c.CodeDigest)
	created, err := s.redis.HSetNX(ctx, key, "code_digest", c.CodeDigest).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if !created {
		return storage.ErrDuplicate
	}

	indexKey := s.codeIndexKey(c.Type, c.Email)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"type", string(c.Type),
			"email", c.Email,
			"caller_state", c.CallerState,
			"created_ms", c.CreatedMs,
			"expires_ms", c.ExpiresMs,
			"consumed_ms", formatMs(c.ConsumedMs),
			"invalidated_ms", formatMs(c.InvalidatedMs),
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, indexKey, c.CodeDigest)
		pipe.PExpire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		storage.Logger(log).WarnContext(ctx, "save verification code failed", "type", string(c.Type), "error", err)
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) GetVerificationByDigest(ctx context.Context, log *slog.Logger, digest string) (*model.VerificationCode, error) {
	fields, err := s.redis.HGetAll(ctx, s.codeKey(digest)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}
	c, err := decodeCode(fields)
	if err != nil {
		storage.Logger(log).WarnContext(ctx, "corrupt verification record", "error", err)
		return nil, err
	}
	return c, nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, log *slog.Logger, digest string, nowMs int64) error {
	err := consumeCodeLua.Run(ctx, s.redis, []string{s.codeKey(digest)}, nowMs).Err()
	if err == nil {
		return nil
	}
	switch err.Error() {
	case "not_found":
		return storage.ErrNotFound
	case "conflict":
		return storage.ErrConflict
	default:
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
}

func (s *Store) InsertSession(ctx context.Context, log *slog.Logger, sess *model.Session) error {
	ttl := time.Duration(sess.ExpiresMs-sess.CreatedMs) * time.Millisecond
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", storage.ErrUnavailable)
	}
	ua := ""
	if sess.UserAgent != nil {
		ua = *sess.UserAgent
	}

	key := s.sessionKey(sess.ID)
	ok, err := s.redis.SetNX(ctx, s.refreshKey(sess.RefreshSecretDigest), sess.ID, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if !ok {
		return storage.ErrDuplicate
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", sess.ID,
			"user_id", sess.UserID,
			"user_agent", ua,
			"has_user_agent", formatBool(sess.UserAgent != nil),
			"ip", sess.IP,
			"refresh_digest", sess.RefreshSecretDigest,
			"invalidated_ms", formatMs(sess.InvalidatedMs),
			"created_ms", sess.CreatedMs,
			"expires_ms", sess.ExpiresMs,
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		storage.Logger(log).WarnContext(ctx, "insert session failed", "session_id", sess.ID, "error", err)
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) InsertSessionToken(ctx context.Context, log *slog.Logger, t *model.SessionToken) error {
	ttl := time.Duration(t.ExpiresMs-t.CreatedMs) * time.Millisecond
	if ttl <= 0 {
		return fmt.Errorf("%w: session token already expired", storage.ErrUnavailable)
	}
	err := s.insertHash(ctx, s.tokenKey(t.TokenDigest),
		"session_id", t.SessionID,
		"created_ms", strconv.FormatInt(t.CreatedMs, 10),
		"expires_ms", strconv.FormatInt(t.ExpiresMs, 10),
	)
	if err != nil {
		return err
	}
	if err := s.redis.PExpire(ctx, s.tokenKey(t.TokenDigest), ttl).Err(); err != nil {
		storage.Logger(log).WarnContext(ctx, "session token ttl not applied", "session_id", t.SessionID, "error", err)
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// Session loads a session by id. It backs the load test and store tests; the
// engine itself never reads sessions back.
func (s *Store) Session(ctx context.Context, id string) (*model.Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}
	return decodeSession(fields)
}
