package flows

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/storage"
)

const (
	stepEmail    = "email"
	stepPassword = "password"
	stepCode     = "code"
	stepTotp     = "totp"
)

// RunEmailStep mails a login code to a registered address. No session is
// issued; the caller redeems the code with RunCodeStep.
func RunEmailStep(ctx context.Context, email, state string, hooks Hooks, deps Deps) (*StepResult, error) {
	d := deps.normalize()
	if !d.loginReady() {
		return nil, autherr.ErrEngineNotReady
	}
	email = NormalizeEmail(email)
	log := d.Log.With("step", stepEmail, "email", email)
	if email == "" {
		return nil, autherr.ErrInvalidRequest
	}

	if d.AllowSend != nil {
		if err := d.AllowSend(ctx, model.CodeTypeLogin, email); err != nil {
			if errors.Is(err, autherr.ErrRateLimited) {
				d.MetricInc(d.Metrics.CodeRateLimited)
			}
			return nil, err
		}
	}

	var user *model.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := lookupUser(gctx, log, email, d)
		user = u
		return err
	})
	g.Go(func() error {
		return d.InvalidateCodes(gctx, log, model.CodeTypeLogin, email)
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, autherr.ErrUserNotFound) {
			d.MetricInc(d.Metrics.LoginFailure)
			d.EmitAudit(ctx, d.Events.LoginFailure, false, "", "", err, stepMeta(stepEmail, "user_not_found"))
		}
		return nil, err
	}

	// The throttle was charged above.
	issued, err := issueCode(ctx, log, codeRequest{
		typ:            model.CodeTypeLogin,
		email:          email,
		state:          state,
		skipInvalidate: true,
		deliver:        true,
	}, hooks, withoutThrottle(d))
	if err != nil {
		return nil, err
	}

	return &StepResult{
		Outcome:       OutcomeCodeSent,
		UserID:        user.ID,
		CodeType:      model.CodeTypeLogin,
		Email:         email,
		CodeExpiresAt: msTime(issued.rec.ExpiresMs),
	}, nil
}

// RunPasswordStep checks a password. Accounts with a second factor receive a
// login code bound to state instead of a session.
func RunPasswordStep(ctx context.Context, email, password, state string, hooks Hooks, deps Deps) (*StepResult, error) {
	d := deps.normalize()
	if !d.loginReady() {
		return nil, autherr.ErrEngineNotReady
	}
	email = NormalizeEmail(email)
	log := d.Log.With("step", stepPassword, "email", email)

	user, err := lookupUser(ctx, log, email, d)
	if err != nil {
		if errors.Is(err, autherr.ErrUserNotFound) {
			d.MetricInc(d.Metrics.LoginFailure)
			d.EmitAudit(ctx, d.Events.LoginFailure, false, "", "", err, stepMeta(stepPassword, "user_not_found"))
		}
		return nil, err
	}

	if !user.HasPassword() {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, user.ID, "", autherr.ErrInvalidCredentials, stepMeta(stepPassword, "no_password"))
		return nil, autherr.ErrInvalidCredentials
	}
	if password == "" || !d.ComparePassword(ctx, password, user.PasswordHash) {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, user.ID, "", autherr.ErrInvalidCredentials, stepMeta(stepPassword, "password_mismatch"))
		return nil, autherr.ErrInvalidCredentials
	}

	if user.Banned {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, user.ID, "", autherr.ErrUserBanned, stepMeta(stepPassword, "banned"))
		return nil, autherr.ErrUserBanned
	}

	if !user.SecondFactorEnabled {
		return issueSession(ctx, log, user, stepPassword, hooks, d)
	}

	issued, err := issueCode(ctx, log, codeRequest{
		typ:   model.CodeTypeLogin,
		email: email,
		state: state,
	}, hooks, d)
	if err != nil {
		return nil, err
	}
	d.MetricInc(d.Metrics.SecondFactorRequired)
	d.EmitAudit(ctx, d.Events.SecondFactorRequired, true, user.ID, "", nil, stepMeta(stepPassword, ""))

	return &StepResult{
		Outcome:       OutcomeSecondFactor,
		UserID:        user.ID,
		CodeType:      model.CodeTypeLogin,
		Email:         email,
		CodeExpiresAt: msTime(issued.rec.ExpiresMs),
		Code:          issued.raw,
		State:         state,
	}, nil
}

// RunCodeStep redeems a login code and issues a session for its owner. The
// code stays consumed when a later step fails.
func RunCodeStep(ctx context.Context, code, state string, hooks Hooks, deps Deps) (*StepResult, error) {
	d := deps.normalize()
	if !d.loginReady() {
		return nil, autherr.ErrEngineNotReady
	}
	log := d.Log.With("step", stepCode)

	rec, err := redeem(ctx, log, code, state, model.CodeTypeLogin, stepCode, d)
	if err != nil {
		return nil, err
	}
	log = log.With("email", rec.Email)

	user, err := lookupUser(ctx, log, rec.Email, d)
	if err != nil {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, "", "", err, stepMeta(stepCode, "owner_lookup_failed"))
		return nil, err
	}
	if user.Banned {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, user.ID, "", autherr.ErrUserBanned, stepMeta(stepCode, "banned"))
		return nil, autherr.ErrUserBanned
	}

	return issueSession(ctx, log, user, stepCode, hooks, d)
}

// RunTotpStep is reserved for a time-based second factor.
func RunTotpStep(ctx context.Context, deps Deps) error {
	d := deps.normalize()
	d.MetricInc(d.Metrics.TotpNotImplemented)
	d.Log.DebugContext(ctx, "totp step requested", "step", stepTotp)
	return autherr.ErrNotImplemented
}

// redeem consumes code after checking it was minted for typ. Codes of another
// type are reported as not found and left untouched.
func redeem(ctx context.Context, log *slog.Logger, code, state string, typ model.CodeType, step string, d Deps) (*model.VerificationCode, error) {
	rec, err := d.LookupCode(ctx, log, code, true)
	if err == nil && rec.Type != typ {
		err = autherr.ErrCodeNotFound
	}
	if err == nil {
		rec, err = d.ConsumeCode(ctx, log, code, state)
	}
	if err != nil {
		d.MetricInc(d.Metrics.CodeRejected)
		d.EmitAudit(ctx, d.Events.CodeRejected, false, "", "", err, func() map[string]string {
			return map[string]string{
				"step": step,
				"code": autherr.CodeOf(err),
			}
		})
		return nil, err
	}

	d.MetricInc(d.Metrics.CodeConsumed)
	d.EmitAudit(ctx, d.Events.CodeConsumed, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"step": step,
			"type": string(rec.Type),
		}
	})
	return rec, nil
}

func lookupUser(ctx context.Context, log *slog.Logger, email string, d Deps) (*model.User, error) {
	user, err := d.GetUserByEmail(ctx, log, email)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, autherr.ErrUserNotFound
	default:
		return nil, autherr.Unavailable("get user", err)
	}
}

func withoutThrottle(d Deps) Deps {
	d.AllowSend = nil
	return d
}
