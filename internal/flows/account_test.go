package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/model"
)

func TestRegisterThenVerifyEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := RunRegister(ctx, RegisterRequest{
		Name:     " Ada ",
		Email:    "Ada@Example.com",
		Password: "correct-pass-1",
		State:    "reg-state",
	}, Hooks{}, h.deps)
	if err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}
	if res.UserID == "" || res.Email != "ada@example.com" || res.CodeExpiresAt.IsZero() {
		t.Fatalf("unexpected result %+v", res)
	}

	user, err := h.store.GetUserByEmail(ctx, nil, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.Name != "Ada" || user.LoginMethod != model.LoginMethodPassword || user.PasswordHash != "hash:correct-pass-1" {
		t.Fatalf("unexpected stored user %+v", user)
	}

	sent := h.lastSent(t)
	if sent.typ != model.CodeTypeVerification || sent.email != "ada@example.com" {
		t.Fatalf("unexpected delivery %+v", sent)
	}
	code := codeFromLink(t, sent.link)

	if v := h.rdb.HGet(ctx, "af:email:ada@example.com", "verified_ms").Val(); v != "" {
		t.Fatalf("expected unverified email, got %q", v)
	}
	verified, err := RunVerifyEmail(ctx, code, "reg-state", h.deps)
	if err != nil {
		t.Fatalf("RunVerifyEmail failed: %v", err)
	}
	if verified.UserEmail != "ada@example.com" {
		t.Fatalf("unexpected verify result %+v", verified)
	}
	if v := h.rdb.HGet(ctx, "af:email:ada@example.com", "verified_ms").Val(); v == "" {
		t.Fatal("expected verified_ms to be set")
	}

	if _, err := RunVerifyEmail(ctx, code, "reg-state", h.deps); !errors.Is(err, autherr.ErrCodeConsumed) {
		t.Fatalf("expected ErrCodeConsumed on second verify, got %v", err)
	}
	if h.metric(mRegistrationSuccess) != 1 || h.metric(mEmailVerified) != 1 {
		t.Fatal("expected registration and verification metrics")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "a@b.com", nil)

	_, err := RunRegister(context.Background(), RegisterRequest{Email: "A@b.com"}, Hooks{}, h.deps)
	if !errors.Is(err, autherr.ErrEmailTaken) || autherr.KindOf(err) != autherr.KindDuplicateResource {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if h.metric(mRegistrationDuplicate) != 1 || h.sentCount() != 0 {
		t.Fatal("expected duplicate metric and no delivery")
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"missing email", RegisterRequest{Email: "  "}, autherr.ErrInvalidRequest},
		{"malformed email", RegisterRequest{Email: "nobody"}, autherr.ErrInvalidRequest},
		{"unknown method", RegisterRequest{Email: "a@b.com", LoginMethod: "sms"}, autherr.ErrInvalidRequest},
		{"password method without password", RegisterRequest{Email: "a@b.com", LoginMethod: model.LoginMethodPassword}, autherr.ErrWeakPassword},
		{"weak password", RegisterRequest{Email: "a@b.com", Password: "short"}, autherr.ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RunRegister(ctx, tc.req, Hooks{}, h.deps)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if _, err := h.store.GetUserByEmail(ctx, nil, "a@b.com"); err == nil {
		t.Fatal("expected no user created by rejected registrations")
	}
}

func TestRegisterPasswordlessDefaultsToEmailMethod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := RunRegister(ctx, RegisterRequest{Email: "p@b.com"}, Hooks{}, h.deps); err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}
	user, err := h.store.GetUserByEmail(ctx, nil, "p@b.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.LoginMethod != model.LoginMethodEmail || user.HasPassword() {
		t.Fatalf("expected passwordless email user, got %+v", user)
	}
	if _, err := RunPasswordStep(ctx, "p@b.com", "anything-1", "", Hooks{}, h.deps); !errors.Is(err, autherr.ErrInvalidCredentials) {
		t.Fatalf("expected password login rejected, got %v", err)
	}
}

func TestVerifyEmailRejectsLoginCode(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "a@b.com", nil)
	ctx := context.Background()

	if _, err := RunEmailStep(ctx, "a@b.com", "", Hooks{}, h.deps); err != nil {
		t.Fatalf("RunEmailStep failed: %v", err)
	}
	code := codeFromLink(t, h.lastSent(t).link)
	_, err := RunVerifyEmail(ctx, code, "", h.deps)
	if !errors.Is(err, autherr.ErrCodeNotFound) || autherr.CodeOf(err) != autherr.CodeCodeNotFound {
		t.Fatalf("expected CODE-NOT-FOUND, got %v", err)
	}
}

func TestResendReissuesWithSameState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := RunRegister(ctx, RegisterRequest{Email: "r@b.com", State: "keep"}, Hooks{}, h.deps); err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}
	old := codeFromLink(t, h.lastSent(t).link)

	res, err := RunResend(ctx, old, Hooks{}, h.deps)
	if err != nil {
		t.Fatalf("RunResend failed: %v", err)
	}
	if res.Outcome != OutcomeCodeSent || res.CodeType != model.CodeTypeVerification || res.Email != "r@b.com" {
		t.Fatalf("unexpected result %+v", res)
	}
	fresh := codeFromLink(t, h.lastSent(t).link)
	if fresh == old {
		t.Fatal("expected a new code")
	}

	if _, err := RunVerifyEmail(ctx, old, "keep", h.deps); !errors.Is(err, autherr.ErrCodeInvalidated) {
		t.Fatalf("expected old code invalidated, got %v", err)
	}
	if _, err := RunVerifyEmail(ctx, fresh, "keep", h.deps); err != nil {
		t.Fatalf("fresh code should verify with the original state: %v", err)
	}
	if _, err := RunResend(ctx, fresh, Hooks{}, h.deps); !errors.Is(err, autherr.ErrCodeConsumed) {
		t.Fatalf("expected CODE_CONSUMED for a redeemed code, got %v", err)
	}
}

func TestResendUnknownCode(t *testing.T) {
	h := newHarness(t)
	_, err := RunResend(context.Background(), "not-a-code", Hooks{}, h.deps)
	if !errors.Is(err, autherr.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}
