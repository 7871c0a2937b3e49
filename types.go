package authflow

import (
	"context"
	"time"

	"github.com/MrEthical07/authflow/model"
)

// CodeType is the purpose a verification code was minted for.
type CodeType = model.CodeType

const (
	CodeTypeLogin        = model.CodeTypeLogin
	CodeTypeVerification = model.CodeTypeVerification
)

// LoginMethod selects the first step an account is expected to use.
type LoginMethod = model.LoginMethod

const (
	LoginMethodEmail    = model.LoginMethodEmail
	LoginMethodPassword = model.LoginMethodPassword
)

// StepRequest is one step of the authentication protocol. The concrete types
// are EmailStep, PasswordStep, CodeStep and TotpStep.
type StepRequest interface {
	isStep()
}

// EmailStep requests a login code mailed to Email.
type EmailStep struct {
	Email string
	// State is opaque caller data echoed back when the code is redeemed.
	State string
}

// PasswordStep checks a password for the account owning Email.
type PasswordStep struct {
	Email    string
	Password string
	State    string
}

// CodeStep redeems a login code. State must equal the state the code was
// minted with.
type CodeStep struct {
	Code  string
	State string
}

// TotpStep is reserved for a time-based one-time password.
type TotpStep struct {
	Code  string
	State string
}

func (EmailStep) isStep()    {}
func (PasswordStep) isStep() {}
func (CodeStep) isStep()     {}
func (TotpStep) isStep()     {}

// Result is the outcome of a successful step: *CodeSent, *PendingStep or
// *SessionIssued.
type Result interface {
	isResult()
}

// StepType names the step a PendingStep expects next.
type StepType string

const StepTotp StepType = "totp"

// CodeSent reports that a code was mailed. No session exists yet.
type CodeSent struct {
	Type      CodeType
	Email     string
	ExpiresAt time.Time
}

// PendingStep asks the caller to complete a second factor. Code and State are
// submitted together in a CodeStep.
type PendingStep struct {
	Type      StepType
	Code      string
	State     string
	ExpiresAt time.Time
}

// SessionIssued carries a new session. The raw tokens are returned exactly
// once; only their digests are stored.
type SessionIssued struct {
	UserID         string
	SessionID      string
	SessionToken   string
	RefreshToken   string
	ExpiresAt      time.Time
	TokenExpiresAt time.Time
}

func (*CodeSent) isResult()      {}
func (*PendingStep) isResult()   {}
func (*SessionIssued) isResult() {}

// RegisterRequest describes a new account.
type RegisterRequest struct {
	Name  string
	Email string
	// Password is required for LoginMethodPassword and optional otherwise.
	Password string
	// LoginMethod defaults to password when Password is set, else email.
	LoginMethod  LoginMethod
	SecondFactor bool
	// State is bound to the verification code.
	State string
}

// RegisterResult reports the created account and its pending verification code.
type RegisterResult struct {
	UserID        string
	Email         string
	CodeExpiresAt time.Time
}

// VerifyEmailResult reports the address marked verified.
type VerifyEmailResult struct {
	Email      string
	VerifiedAt time.Time
}

// EmailSender delivers verification codes. Implementations are supplied by
// the host; see package notify for ready-made senders.
type EmailSender interface {
	SendCode(ctx context.Context, typ CodeType, toEmail, verificationLink string) error
}

// EmailSenderFunc adapts a function to EmailSender.
type EmailSenderFunc func(ctx context.Context, typ CodeType, toEmail, verificationLink string) error

func (f EmailSenderFunc) SendCode(ctx context.Context, typ CodeType, toEmail, verificationLink string) error {
	return f(ctx, typ, toEmail, verificationLink)
}

// CodeGenerated is passed to AfterCodeGenerated hooks. Code is the raw secret.
type CodeGenerated struct {
	Type      CodeType
	Email     string
	State     string
	Code      string
	ExpiresAt time.Time
}
