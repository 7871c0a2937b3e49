package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authflow/autherr"
	"github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/notify"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/storage"
	"github.com/MrEthical07/authflow/verification"
)

// Engine runs the authentication protocol. It is safe for concurrent use once
// built and holds no per-user state beyond the comparison cache.
type Engine struct {
	config   Config
	store    storage.Store
	codes    *verification.Service
	sessions *session.Service
	hasher   password.Hasher
	comparer *password.Comparer
	policy   password.Policy
	throttle *rate.Limiter
	sender   EmailSender
	links    notify.LinkBuilder
	audit    *audit.Dispatcher
	metrics  *Metrics
	log      *slog.Logger
	clock    func() time.Time
	flow     flows.Service
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate runs one protocol step, passed by value. A successful step
// returns *CodeSent (EmailStep), *PendingStep (PasswordStep with a second
// factor) or *SessionIssued. Failures carry a Kind and, for KindBadRequest, a
// Code; see KindOf and CodeOf.
func (e *Engine) Authenticate(ctx context.Context, step StepRequest, opts ...Option) (Result, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	hooks := collectOptions(opts).hooks

	start := time.Now()
	defer func() { e.metrics.Observe(MetricStepLatency, time.Since(start)) }()

	switch s := step.(type) {
	case EmailStep:
		res, err := e.flow.EmailStep(ctx, s.Email, s.State, hooks)
		if err != nil {
			return nil, err
		}
		return codeSent(res), nil

	case PasswordStep:
		res, err := e.flow.PasswordStep(ctx, s.Email, s.Password, s.State, hooks)
		if err != nil {
			return nil, err
		}
		if res.Outcome == flows.OutcomeSecondFactor {
			return &PendingStep{
				Type:      StepTotp,
				Code:      res.Code,
				State:     res.State,
				ExpiresAt: res.CodeExpiresAt,
			}, nil
		}
		return sessionIssued(res.UserID, res.Session), nil

	case CodeStep:
		res, err := e.flow.CodeStep(ctx, s.Code, s.State, hooks)
		if err != nil {
			return nil, err
		}
		return sessionIssued(res.UserID, res.Session), nil

	case TotpStep:
		return nil, e.flow.TotpStep(ctx)

	default:
		return nil, fmt.Errorf("%w: unsupported step %T", ErrInvalidRequest, step)
	}
}

// Register creates an account and mails a verification code to its address.
func (e *Engine) Register(ctx context.Context, req RegisterRequest, opts ...Option) (*RegisterResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Register(ctx, flows.RegisterRequest{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		LoginMethod:  req.LoginMethod,
		SecondFactor: req.SecondFactor,
		State:        req.State,
	}, collectOptions(opts).hooks)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		UserID:        res.UserID,
		Email:         res.Email,
		CodeExpiresAt: res.CodeExpiresAt,
	}, nil
}

// VerifyEmail redeems a verification code and marks its address verified.
// state must equal the State given at registration.
func (e *Engine) VerifyEmail(ctx context.Context, code, state string) (*VerifyEmailResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.VerifyEmail(ctx, code, state)
	if err != nil {
		return nil, err
	}
	return &VerifyEmailResult{Email: res.UserEmail, VerifiedAt: res.VerifiedAt}, nil
}

// Resend replaces the code behind oldCode with a fresh one and mails it. The
// new code keeps the type, address and state of the old one. Consumed codes
// are refused with CODE_CONSUMED.
func (e *Engine) Resend(ctx context.Context, oldCode string, opts ...Option) (*CodeSent, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Resend(ctx, oldCode, collectOptions(opts).hooks)
	if err != nil {
		return nil, err
	}
	return codeSent(res), nil
}

func codeSent(res *flows.StepResult) *CodeSent {
	return &CodeSent{
		Type:      res.CodeType,
		Email:     res.Email,
		ExpiresAt: res.CodeExpiresAt,
	}
}

func sessionIssued(userID string, t *session.Tokens) *SessionIssued {
	if t == nil {
		return &SessionIssued{UserID: userID}
	}
	return &SessionIssued{
		UserID:         userID,
		SessionID:      t.SessionID,
		SessionToken:   t.SessionToken,
		RefreshToken:   t.RefreshToken,
		ExpiresAt:      t.ExpiresAt,
		TokenExpiresAt: t.TokenExpiresAt,
	}
}

func (e *Engine) initFlowService() {
	e.flow = flows.New(flows.Deps{
		LoginCodeTTL:         e.config.Verification.LoginCodeTTL,
		VerificationCodeTTL:  e.config.Verification.CodeTTL,
		Log:                  e.log,
		Now:                  e.now,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		NewUserID:            func() string { return uuid.NewString() },

		GetUserByEmail:    e.store.GetUserByEmail,
		InsertUser:        e.store.InsertUser,
		InsertLoginEmail:  e.store.InsertLoginEmail,
		MarkEmailVerified: e.store.MarkEmailVerified,

		InvalidateCodes: e.codes.InvalidateOutstanding,
		GenerateCode:    e.codes.Generate,
		ConsumeCode:     e.codes.Consume,
		LookupCode:      e.codes.Lookup,

		AllowSend: e.allowSend,
		ResetSend: e.resetSend,
		BuildLink: e.links.Build,
		SendCode: func(ctx context.Context, typ model.CodeType, email, link string) error {
			return e.sender.SendCode(ctx, typ, email, link)
		},

		ComparePassword:  e.comparer.Compare,
		HashPassword:     e.hasher.Hash,
		ValidatePassword: e.policy.Validate,

		IssueSession: e.sessions.Issue,

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,

		Metrics: flows.Metrics{
			CodeIssued:            int(MetricCodeIssued),
			CodeConsumed:          int(MetricCodeConsumed),
			CodeRejected:          int(MetricCodeRejected),
			CodeRateLimited:       int(MetricCodeRateLimited),
			CodeDeliveryFailure:   int(MetricCodeDeliveryFailure),
			LoginSuccess:          int(MetricLoginSuccess),
			LoginFailure:          int(MetricLoginFailure),
			SecondFactorRequired:  int(MetricSecondFactorRequired),
			TotpNotImplemented:    int(MetricTotpNotImplemented),
			SessionCreated:        int(MetricSessionCreated),
			RegistrationSuccess:   int(MetricRegistrationSuccess),
			RegistrationDuplicate: int(MetricRegistrationDuplicate),
			EmailVerified:         int(MetricEmailVerified),
			HookFailure:           int(MetricHookFailure),
		},
		Events: flows.Events{
			CodeIssued:            AuditEventCodeIssued,
			CodeConsumed:          AuditEventCodeConsumed,
			CodeRejected:          AuditEventCodeRejected,
			LoginSuccess:          AuditEventLoginSuccess,
			LoginFailure:          AuditEventLoginFailure,
			SecondFactorRequired:  AuditEventSecondFactorRequired,
			SessionIssued:         AuditEventSessionIssued,
			RegistrationSuccess:   AuditEventRegistrationSuccess,
			RegistrationDuplicate: AuditEventRegistrationDuplicate,
			EmailVerified:         AuditEventEmailVerified,
		},
	})
}

func (e *Engine) allowSend(ctx context.Context, typ model.CodeType, email string) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.AllowSend(ctx, string(typ), email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	default:
		return autherr.Unavailable("send throttle", err)
	}
}

func (e *Engine) resetSend(ctx context.Context, typ model.CodeType, email string) error {
	if e.throttle == nil {
		return nil
	}
	return e.throttle.ResetSend(ctx, string(typ), email)
}
