package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

func newTestSessionService(t *testing.T, opts ...Option) (*Service, *redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	store := redisstore.New(rdb)
	svc, err := New(store, 30*24*time.Hour, 15*time.Minute, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, store, mr
}

func TestIssuePersistsDigestsOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, store, mr := newTestSessionService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	tok, err := svc.Issue(ctx, nil, "u1", "curl/8", "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.SessionToken == tok.RefreshToken {
		t.Fatal("access and refresh secrets must be independent")
	}
	if !tok.ExpiresAt.Equal(now.Add(30*24*time.Hour)) || !tok.TokenExpiresAt.Equal(now.Add(15*time.Minute)) {
		t.Fatalf("unexpected expiries: %v %v", tok.ExpiresAt, tok.TokenExpiresAt)
	}
	if _, err := ulid.ParseStrict(tok.SessionID); err != nil {
		t.Fatalf("session id is not a ULID: %v", err)
	}

	sess, err := store.Session(ctx, tok.SessionID)
	if err != nil {
		t.Fatalf("stored session missing: %v", err)
	}
	if sess.RefreshSecretDigest != internal.DigestString(tok.RefreshToken) {
		t.Fatal("session must be keyed by the refresh digest")
	}
	if sess.UserAgent == nil || *sess.UserAgent != "curl/8" || sess.IP != "10.0.0.1" || sess.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if !mr.Exists("af:token:" + internal.DigestString(tok.SessionToken)) {
		t.Fatal("access token row missing")
	}
	for _, k := range mr.Keys() {
		if bytes.Contains([]byte(k), []byte(tok.RefreshToken)) || bytes.Contains([]byte(k), []byte(tok.SessionToken)) {
			t.Fatalf("raw secret leaked into key %s", k)
		}
	}
}

func TestIssueEmptyUserAgentIsAbsent(t *testing.T) {
	svc, store, _ := newTestSessionService(t)
	tok, err := svc.Issue(context.Background(), nil, "u1", "", "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sess, _ := store.Session(context.Background(), tok.SessionID)
	if sess.UserAgent != nil {
		t.Fatalf("expected nil user agent, got %q", *sess.UserAgent)
	}
}

func TestIssueSecretsAreDistinctAcrossCalls(t *testing.T) {
	svc, _, _ := newTestSessionService(t)
	seen := map[string]bool{}
	var ids []string
	for i := 0; i < 20; i++ {
		tok, err := svc.Issue(context.Background(), nil, "u1", "", "ip")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		for _, s := range []string{tok.SessionToken, tok.RefreshToken} {
			if seen[s] {
				t.Fatalf("secret reused: %s", s)
			}
			seen[s] = true
		}
		ids = append(ids, tok.SessionID)
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("session ids must sort by creation")
	}
}

type failingTokenStore struct{ inserted []*model.Session }

func (f *failingTokenStore) InsertSession(_ context.Context, _ *slog.Logger, s *model.Session) error {
	f.inserted = append(f.inserted, s)
	return nil
}

func (f *failingTokenStore) InsertSessionToken(context.Context, *slog.Logger, *model.SessionToken) error {
	return errors.New("disk full")
}

func TestIssueTokenFailureLeavesSession(t *testing.T) {
	store := &failingTokenStore{}
	svc, err := New(store, time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = svc.Issue(context.Background(), nil, "u1", "", "ip")
	if autherr.KindOf(err) != autherr.KindUnavailable {
		t.Fatalf("expected KindUnavailable, got %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("session row must not be rolled back, got %d rows", len(store.inserted))
	}
}

func TestNewValidatesTTLs(t *testing.T) {
	if _, err := New(&failingTokenStore{}, 0, time.Minute); err == nil {
		t.Fatal("expected zero session ttl to be rejected")
	}
	if _, err := New(&failingTokenStore{}, time.Hour, 0); err == nil {
		t.Fatal("expected zero token ttl to be rejected")
	}
	if _, err := New(nil, time.Hour, time.Minute); err == nil {
		t.Fatal("expected nil store to be rejected")
	}
}
