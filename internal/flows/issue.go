package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/model"
)

type codeRequest struct {
	typ   model.CodeType
	email string
	state string
	// skipInvalidate is set when the caller already invalidated outstanding
	// codes for (typ, email).
	skipInvalidate bool
	// deliver sends the code through SendCode. Undelivered codes are handed
	// back to the caller and are not throttled.
	deliver bool
}

type issuedCode struct {
	raw string
	rec *model.VerificationCode
}

func issueCode(ctx context.Context, log *slog.Logger, req codeRequest, hooks Hooks, d Deps) (*issuedCode, error) {
	if req.deliver && d.AllowSend != nil {
		if err := d.AllowSend(ctx, req.typ, req.email); err != nil {
			if errors.Is(err, autherr.ErrRateLimited) {
				d.MetricInc(d.Metrics.CodeRateLimited)
				log.InfoContext(ctx, "code send throttled", "type", string(req.typ))
			}
			return nil, err
		}
	}

	if err := invalidateOutstanding(ctx, log, req, d); err != nil {
		return nil, err
	}

	expiresAt := d.Now().Add(d.codeTTL(req.typ))
	raw, rec, err := d.GenerateCode(ctx, log, req.typ, req.email, req.state, expiresAt)
	if err != nil {
		return nil, err
	}
	d.MetricInc(d.Metrics.CodeIssued)
	d.EmitAudit(ctx, d.Events.CodeIssued, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"type":      string(req.typ),
			"delivered": fmt.Sprint(req.deliver),
		}
	})

	event := CodeEvent{
		Type:      req.typ,
		Email:     req.email,
		State:     req.state,
		Code:      raw,
		ExpiresAt: expiresAt,
	}
	for _, hook := range hooks.AfterCodeGenerated {
		if err := hook(ctx, event); err != nil {
			d.MetricInc(d.Metrics.HookFailure)
			return nil, fmt.Errorf("hook: %w", err)
		}
	}

	if req.deliver {
		if err := d.SendCode(ctx, req.typ, req.email, d.BuildLink(req.typ, raw)); err != nil {
			d.MetricInc(d.Metrics.CodeDeliveryFailure)
			log.WarnContext(ctx, "code delivery failed", "type", string(req.typ), "error", err)
			return nil, fmt.Errorf("%w: %w", autherr.ErrDeliveryFailed, err)
		}
	}
	return &issuedCode{raw: raw, rec: rec}, nil
}

// invalidateOutstanding invalidates outstanding codes unless the caller
// already did so.
func invalidateOutstanding(ctx context.Context, log *slog.Logger, req codeRequest, d Deps) error {
	if req.skipInvalidate {
		return nil
	}
	return d.InvalidateCodes(ctx, log, req.typ, req.email)
}

func issueSession(ctx context.Context, log *slog.Logger, user *model.User, step string, hooks Hooks, d Deps) (*StepResult, error) {
	tokens, err := d.IssueSession(ctx, log, user.ID, d.UserAgentFromContext(ctx), d.ClientIPFromContext(ctx))
	if err != nil {
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(ctx, d.Events.LoginFailure, false, user.ID, "", err, stepMeta(step, "session_issue_failed"))
		return nil, err
	}

	d.MetricInc(d.Metrics.SessionCreated)
	d.MetricInc(d.Metrics.LoginSuccess)
	d.EmitAudit(ctx, d.Events.SessionIssued, true, user.ID, tokens.SessionID, nil, nil)
	d.EmitAudit(ctx, d.Events.LoginSuccess, true, user.ID, tokens.SessionID, nil, stepMeta(step, ""))

	event := SessionEvent{UserID: user.ID, Tokens: *tokens}
	for _, hook := range hooks.AfterSessionIssued {
		if err := hook(ctx, event); err != nil {
			d.MetricInc(d.Metrics.HookFailure)
			return nil, fmt.Errorf("hook: %w", err)
		}
	}

	return &StepResult{
		Outcome: OutcomeSession,
		UserID:  user.ID,
		Session: tokens,
	}, nil
}

func stepMeta(step, reason string) func() map[string]string {
	return func() map[string]string {
		m := map[string]string{"step": step}
		if reason != "" {
			m["reason"] = reason
		}
		return m
	}
}
