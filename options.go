package authflow

import (
	"context"

	"github.com/MrEthical07/authflow/internal/flows"
)

// Option customizes a single engine call.
type Option func(*callOptions)

type callOptions struct {
	hooks flows.Hooks
}

// WithAfterCodeGenerated registers fn to run after a code is minted and before
// it is mailed. Hooks run synchronously in registration order. A hook error
// aborts the call: it is returned wrapped as "hook: ..." and the minted code
// is kept.
func WithAfterCodeGenerated(fn func(context.Context, CodeGenerated) error) Option {
	return func(o *callOptions) {
		if fn == nil {
			return
		}
		o.hooks.AfterCodeGenerated = append(o.hooks.AfterCodeGenerated, func(ctx context.Context, ev flows.CodeEvent) error {
			return fn(ctx, CodeGenerated{
				Type:      ev.Type,
				Email:     ev.Email,
				State:     ev.State,
				Code:      ev.Code,
				ExpiresAt: ev.ExpiresAt,
			})
		})
	}
}

// WithAfterSessionIssued registers fn to run after a session is stored and
// before the call returns. Error handling matches WithAfterCodeGenerated; the
// session stays valid.
func WithAfterSessionIssued(fn func(context.Context, *SessionIssued) error) Option {
	return func(o *callOptions) {
		if fn == nil {
			return
		}
		o.hooks.AfterSessionIssued = append(o.hooks.AfterSessionIssued, func(ctx context.Context, ev flows.SessionEvent) error {
			return fn(ctx, sessionIssued(ev.UserID, &ev.Tokens))
		})
	}
}

func collectOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
