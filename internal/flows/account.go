package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage"
)

const (
	stepRegister = "register"
	stepVerify   = "verify_email"
	stepResend   = "resend"
)

// RunRegister creates an account, claims its email and mails a verification
// code. A user whose email claim loses a concurrent race is left without an
// address.
func RunRegister(ctx context.Context, req RegisterRequest, hooks Hooks, deps Deps) (*RegisterResult, error) {
	d := deps.normalize()
	if !d.accountReady() {
		return nil, autherr.ErrEngineNotReady
	}
	email := NormalizeEmail(req.Email)
	log := d.Log.With("step", stepRegister, "email", email)

	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email address required", autherr.ErrInvalidRequest)
	}
	method := req.LoginMethod
	if method == "" {
		method = model.LoginMethodEmail
		if req.Password != "" {
			method = model.LoginMethodPassword
		}
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown login method %q", autherr.ErrInvalidRequest, method)
	}
	if method == model.LoginMethodPassword && req.Password == "" {
		return nil, fmt.Errorf("%w: password required", autherr.ErrWeakPassword)
	}

	var passwordHash string
	if req.Password != "" {
		if err := d.ValidatePassword(req.Password); err != nil {
			return nil, err
		}
		hash, err := d.HashPassword(req.Password)
		if err != nil {
			return nil, autherr.Unavailable("hash password", err)
		}
		passwordHash = hash
	}

	if _, err := d.GetUserByEmail(ctx, log, email); err == nil {
		return nil, registrationDuplicate(ctx, d)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, autherr.Unavailable("get user", err)
	}

	nowMs := d.Now().UnixMilli()
	user := &model.User{
		ID:                  d.NewUserID(),
		Name:                strings.TrimSpace(req.Name),
		PasswordHash:        passwordHash,
		LoginMethod:         method,
		SecondFactorEnabled: req.SecondFactor,
		CreatedMs:           nowMs,
	}
	if err := d.InsertUser(ctx, log, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, registrationDuplicate(ctx, d)
		}
		return nil, autherr.Unavailable("insert user", err)
	}
	if err := d.InsertLoginEmail(ctx, log, &model.LoginEmail{
		Email:     email,
		UserID:    user.ID,
		CreatedMs: nowMs,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			log.WarnContext(ctx, "email claimed concurrently, user left without address", "user_id", user.ID)
			return nil, registrationDuplicate(ctx, d)
		}
		return nil, autherr.Unavailable("insert login email", err)
	}

	d.MetricInc(d.Metrics.RegistrationSuccess)
	d.EmitAudit(ctx, d.Events.RegistrationSuccess, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"login_method": string(method)}
	})

	issued, err := issueCode(ctx, log, codeRequest{
		typ:     model.CodeTypeVerification,
		email:   email,
		state:   req.State,
		deliver: true,
	}, hooks, d)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		UserID:        user.ID,
		Email:         email,
		CodeExpiresAt: msTime(issued.rec.ExpiresMs),
	}, nil
}

func registrationDuplicate(ctx context.Context, d Deps) error {
	d.MetricInc(d.Metrics.RegistrationDuplicate)
	d.EmitAudit(ctx, d.Events.RegistrationDuplicate, false, "", "", autherr.ErrEmailTaken, nil)
	return autherr.ErrEmailTaken
}

// RunVerifyEmail redeems a verification code and marks its address verified.
func RunVerifyEmail(ctx context.Context, code, state string, deps Deps) (*VerifyResult, error) {
	d := deps.normalize()
	if !d.accountReady() {
		return nil, autherr.ErrEngineNotReady
	}
	log := d.Log.With("step", stepVerify)

	rec, err := redeem(ctx, log, code, state, model.CodeTypeVerification, stepVerify, d)
	if err != nil {
		return nil, err
	}
	log = log.With("email", rec.Email)

	now := d.Now()
	if err := d.MarkEmailVerified(ctx, log, rec.Email, now.UnixMilli()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, autherr.ErrUserNotFound
		}
		return nil, autherr.Unavailable("mark email verified", err)
	}
	d.MetricInc(d.Metrics.EmailVerified)
	d.EmitAudit(ctx, d.Events.EmailVerified, true, "", "", nil, nil)

	if d.ResetSend != nil {
		if err := d.ResetSend(ctx, model.CodeTypeVerification, rec.Email); err != nil {
			log.WarnContext(ctx, "send throttle reset failed", "error", err)
		}
	}

	return &VerifyResult{UserEmail: rec.Email, VerifiedAt: now}, nil
}

// RunResend replaces the code behind oldCode with a fresh one of the same
// type, address and caller state, and mails it.
func RunResend(ctx context.Context, oldCode string, hooks Hooks, deps Deps) (*StepResult, error) {
	d := deps.normalize()
	if !d.loginReady() {
		return nil, autherr.ErrEngineNotReady
	}
	log := d.Log.With("step", stepResend)

	rec, err := d.LookupCode(ctx, log, oldCode, true)
	if err != nil {
		return nil, err
	}
	if rec.Consumed() {
		return nil, autherr.ErrCodeConsumed
	}
	log = log.With("email", rec.Email)

	issued, err := issueCode(ctx, log, codeRequest{
		typ:     rec.Type,
		email:   rec.Email,
		state:   rec.CallerState,
		deliver: true,
	}, hooks, d)
	if err != nil {
		return nil, err
	}

	return &StepResult{
		Outcome:       OutcomeCodeSent,
		CodeType:      rec.Type,
		Email:         rec.Email,
		CodeExpiresAt: msTime(issued.rec.ExpiresMs),
	}, nil
}

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
