package flows

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/storage/redisstore"
	"github.com/MrEthical07/authflow/verification"
)

type sentCode struct {
	typ   model.CodeType
	email string
	link  string
}

type harness struct {
	deps  Deps
	store *redisstore.Store
	rdb   *redis.Client

	mu      sync.Mutex
	sent    []sentCode
	metrics map[int]int
	events  []string
}

const (
	mCodeIssued = iota + 1
	mCodeConsumed
	mCodeRejected
	mCodeRateLimited
	mCodeDeliveryFailure
	mLoginSuccess
	mLoginFailure
	mSecondFactorRequired
	mTotpNotImplemented
	mSessionCreated
	mRegistrationSuccess
	mRegistrationDuplicate
	mEmailVerified
	mHookFailure
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	store := redisstore.New(rdb)
	codes := verification.New(store)
	sessions, err := session.New(store, 24*time.Hour, 15*time.Minute)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}

	h := &harness{store: store, rdb: rdb, metrics: map[int]int{}}
	var ids int
	h.deps = Deps{
		LoginCodeTTL:        10 * time.Minute,
		VerificationCodeTTL: 20 * time.Minute,
		Log:                 slog.New(slog.DiscardHandler),
		NewUserID: func() string {
			h.mu.Lock()
			defer h.mu.Unlock()
			ids++
			return "user-" + string(rune('0'+ids))
		},

		GetUserByEmail:    store.GetUserByEmail,
		InsertUser:        store.InsertUser,
		InsertLoginEmail:  store.InsertLoginEmail,
		MarkEmailVerified: store.MarkEmailVerified,

		InvalidateCodes: codes.InvalidateOutstanding,
		GenerateCode:    codes.Generate,
		ConsumeCode:     codes.Consume,
		LookupCode:      codes.Lookup,

		BuildLink: func(_ model.CodeType, raw string) string {
			return "https://app.test/verify?code=" + raw
		},
		SendCode: func(_ context.Context, typ model.CodeType, email, link string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent = append(h.sent, sentCode{typ: typ, email: email, link: link})
			return nil
		},

		ComparePassword: func(_ context.Context, secret, digest string) bool {
			return digest == "hash:"+secret
		},
		HashPassword: func(secret string) (string, error) {
			return "hash:" + secret, nil
		},
		ValidatePassword: func(secret string) error {
			if len(secret) < 8 {
				return autherr.ErrWeakPassword
			}
			return nil
		},

		IssueSession: sessions.Issue,

		MetricInc: func(id int) {
			h.mu.Lock()
			h.metrics[id]++
			h.mu.Unlock()
		},
		EmitAudit: func(_ context.Context, event string, _ bool, _, _ string, _ error, meta func() map[string]string) {
			if meta != nil {
				_ = meta()
			}
			h.mu.Lock()
			h.events = append(h.events, event)
			h.mu.Unlock()
		},
		Metrics: Metrics{
			CodeIssued:            mCodeIssued,
			CodeConsumed:          mCodeConsumed,
			CodeRejected:          mCodeRejected,
			CodeRateLimited:       mCodeRateLimited,
			CodeDeliveryFailure:   mCodeDeliveryFailure,
			LoginSuccess:          mLoginSuccess,
			LoginFailure:          mLoginFailure,
			SecondFactorRequired:  mSecondFactorRequired,
			TotpNotImplemented:    mTotpNotImplemented,
			SessionCreated:        mSessionCreated,
			RegistrationSuccess:   mRegistrationSuccess,
			RegistrationDuplicate: mRegistrationDuplicate,
			EmailVerified:         mEmailVerified,
			HookFailure:           mHookFailure,
		},
		Events: Events{
			CodeIssued:            "code_issued",
			CodeConsumed:          "code_consumed",
			CodeRejected:          "code_rejected",
			LoginSuccess:          "login_success",
			LoginFailure:          "login_failure",
			SecondFactorRequired:  "second_factor_required",
			SessionIssued:         "session_issued",
			RegistrationSuccess:   "registration_success",
			RegistrationDuplicate: "registration_duplicate",
			EmailVerified:         "email_verified",
		},
	}
	return h
}

func (h *harness) addUser(t *testing.T, email string, mutate func(*model.User)) *model.User {
	t.Helper()
	u := &model.User{
		ID:           "u-" + strings.SplitN(email, "@", 2)[0],
		Name:         "Test",
		PasswordHash: "hash:correct-pass-1",
		LoginMethod:  model.LoginMethodPassword,
		CreatedMs:    time.Now().UnixMilli(),
	}
	if mutate != nil {
		mutate(u)
	}
	ctx := context.Background()
	if err := h.store.InsertUser(ctx, nil, u); err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if err := h.store.InsertLoginEmail(ctx, nil, &model.LoginEmail{Email: email, UserID: u.ID, CreatedMs: u.CreatedMs}); err != nil {
		t.Fatalf("InsertLoginEmail failed: %v", err)
	}
	return u
}

func (h *harness) lastSent(t *testing.T) sentCode {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sent) == 0 {
		t.Fatal("expected a delivered code")
	}
	return h.sent[len(h.sent)-1]
}

func (h *harness) sentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

func (h *harness) metric(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics[id]
}

func (h *harness) sawEvent(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e == name {
			return true
		}
	}
	return false
}

func codeFromLink(t *testing.T, link string) string {
	t.Helper()
	_, code, ok := strings.Cut(link, "code=")
	if !ok || code == "" {
		t.Fatalf("link %q carries no code", link)
	}
	return code
}
