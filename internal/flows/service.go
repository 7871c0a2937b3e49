package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.accountReady()
}

func (s Service) EmailStep(ctx context.Context, email, state string, hooks Hooks) (*StepResult, error) {
	return RunEmailStep(ctx, email, state, hooks, s.deps)
}

func (s Service) PasswordStep(ctx context.Context, email, password, state string, hooks Hooks) (*StepResult, error) {
	return RunPasswordStep(ctx, email, password, state, hooks, s.deps)
}

func (s Service) CodeStep(ctx context.Context, code, state string, hooks Hooks) (*StepResult, error) {
	return RunCodeStep(ctx, code, state, hooks, s.deps)
}

func (s Service) TotpStep(ctx context.Context) error {
	return RunTotpStep(ctx, s.deps)
}

func (s Service) Register(ctx context.Context, req RegisterRequest, hooks Hooks) (*RegisterResult, error) {
	return RunRegister(ctx, req, hooks, s.deps)
}

func (s Service) VerifyEmail(ctx context.Context, code, state string) (*VerifyResult, error) {
	return RunVerifyEmail(ctx, code, state, s.deps)
}

func (s Service) Resend(ctx context.Context, oldCode string, hooks Hooks) (*StepResult, error) {
	return RunResend(ctx, oldCode, hooks, s.deps)
}
