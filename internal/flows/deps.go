package flows

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/model"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/storage"
)

// Metrics carries the metric IDs flows increment.
type Metrics struct {
	CodeIssued            int
	CodeConsumed          int
	CodeRejected          int
	CodeRateLimited       int
	CodeDeliveryFailure   int
	LoginSuccess          int
	LoginFailure          int
	SecondFactorRequired  int
	TotpNotImplemented    int
	SessionCreated        int
	RegistrationSuccess   int
	RegistrationDuplicate int
	EmailVerified         int
	HookFailure           int
}

// Events carries the audit event names flows emit.
type Events struct {
	CodeIssued            string
	CodeConsumed          string
	CodeRejected          string
	LoginSuccess          string
	LoginFailure          string
	SecondFactorRequired  string
	SessionIssued         string
	RegistrationSuccess   string
	RegistrationDuplicate string
	EmailVerified         string
}

// Deps captures every collaborator a flow may call. The root engine builds it
// once; nil optional fields are replaced with no-ops per call.
type Deps struct {
	LoginCodeTTL        time.Duration
	VerificationCodeTTL time.Duration

	Log                  *slog.Logger
	Now                  func() time.Time
	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string
	NewUserID            func() string

	GetUserByEmail    func(context.Context, *slog.Logger, string) (*model.User, error)
	InsertUser        func(context.Context, *slog.Logger, *model.User) error
	InsertLoginEmail  func(context.Context, *slog.Logger, *model.LoginEmail) error
	MarkEmailVerified func(context.Context, *slog.Logger, string, int64) error

	InvalidateCodes func(context.Context, *slog.Logger, model.CodeType, string) error
	GenerateCode    func(context.Context, *slog.Logger, model.CodeType, string, string, time.Time) (string, *model.VerificationCode, error)
	ConsumeCode     func(context.Context, *slog.Logger, string, string) (*model.VerificationCode, error)
	LookupCode      func(context.Context, *slog.Logger, string, bool) (*model.VerificationCode, error)

	// AllowSend is the optional delivery throttle. It returns
	// autherr.ErrRateLimited once the budget for (type, email) is spent.
	AllowSend func(context.Context, model.CodeType, string) error
	ResetSend func(context.Context, model.CodeType, string) error
	BuildLink func(model.CodeType, string) string
	SendCode  func(context.Context, model.CodeType, string, string) error

	ComparePassword  func(context.Context, string, string) bool
	HashPassword     func(string) (string, error)
	ValidatePassword func(string) error

	IssueSession func(context.Context, *slog.Logger, string, string, string) (*session.Tokens, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)

	Metrics Metrics
	Events  Events
}

func (d Deps) normalize() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Log = storage.Logger(d.Log)
	if d.ClientIPFromContext == nil {
		d.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if d.UserAgentFromContext == nil {
		d.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if d.BuildLink == nil {
		d.BuildLink = func(_ model.CodeType, raw string) string { return raw }
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	return d
}

// loginReady reports whether the collaborators shared by the login steps are wired.
func (d Deps) loginReady() bool {
	return d.GetUserByEmail != nil &&
		d.InvalidateCodes != nil &&
		d.GenerateCode != nil &&
		d.ConsumeCode != nil &&
		d.LookupCode != nil &&
		d.SendCode != nil &&
		d.ComparePassword != nil &&
		d.IssueSession != nil
}

func (d Deps) accountReady() bool {
	return d.loginReady() &&
		d.InsertUser != nil &&
		d.InsertLoginEmail != nil &&
		d.MarkEmailVerified != nil &&
		d.HashPassword != nil &&
		d.ValidatePassword != nil &&
		d.NewUserID != nil
}

func (d Deps) codeTTL(typ model.CodeType) time.Duration {
	if typ == model.CodeTypeLogin {
		return d.LoginCodeTTL
	}
	return d.VerificationCodeTTL
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CodeEvent is passed to AfterCodeGenerated hooks.
type CodeEvent struct {
	Type      model.CodeType
	Email     string
	State     string
	Code      string
	ExpiresAt time.Time
}

// SessionEvent is passed to AfterSessionIssued hooks.
type SessionEvent struct {
	UserID string
	Tokens session.Tokens
}

// Hooks are per-call observers, invoked in slice order.
type Hooks struct {
	AfterCodeGenerated []func(context.Context, CodeEvent) error
	AfterSessionIssued []func(context.Context, SessionEvent) error
}

// Outcome tags a StepResult.
type Outcome uint8

const (
	OutcomeCodeSent Outcome = iota + 1
	OutcomeSecondFactor
	OutcomeSession
)

// StepResult is the flow-local authentication step response shape.
type StepResult struct {
	Outcome Outcome
	UserID  string

	// Set for OutcomeCodeSent and OutcomeSecondFactor.
	CodeType      model.CodeType
	Email         string
	CodeExpiresAt time.Time

	// Set for OutcomeSecondFactor.
	Code  string
	State string

	// Set for OutcomeSession.
	Session *session.Tokens
}

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Name         string
	Email        string
	Password     string
	LoginMethod  model.LoginMethod
	SecondFactor bool
	State        string
}

// RegisterResult is the flow-local registration response.
type RegisterResult struct {
	UserID        string
	Email         string
	CodeExpiresAt time.Time
}

// VerifyResult reports the address marked verified.
type VerifyResult struct {
	UserEmail  string
	VerifiedAt time.Time
}
