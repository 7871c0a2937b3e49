// Package authflow is an account authentication engine built around one-time
// verification codes.
//
// An [Engine] drives a multi-step login: a caller submits an [EmailStep] to
// receive an emailed login code, or a [PasswordStep] to check a password. A
// password login for an account with a second factor returns a [PendingStep]
// whose code is redeemed with a [CodeStep]; every other success ends in a
// [SessionIssued] carrying a fresh session token and refresh token. The engine
// also registers accounts, verifies email ownership and reissues codes.
//
// # Architecture boundaries
//
// The engine owns the verification-code lifecycle, the step state machine,
// the cached password comparison and session issuance. Persistence is reached
// through storage.Store, mail through [EmailSender]. HTTP routing, request
// parsing and token validation on later requests belong to the host
// application.
//
// # What this package must NOT do
//
//   - Persist or log raw codes, session tokens or refresh tokens. Only SHA-256
//     digests are stored.
//   - Retry failed storage, cache or delivery calls.
//   - Roll back a consumed code when a later step fails.
//
// # Quick start
//
//	cfg := authflow.DefaultConfig()
//	cfg.Session.TTL = 30 * 24 * time.Hour
//	cfg.Session.TokenTTL = 15 * time.Minute
//	cfg.Verification.CodeTTL = 24 * time.Hour
//	cfg.Verification.LoginCodeTTL = 10 * time.Minute
//
//	engine, err := authflow.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithEmailSender(sender).
//		Build()
//	if err != nil { ... }
//	defer engine.Close()
//
//	res, err := engine.Authenticate(ctx, authflow.PasswordStep{Email: email, Password: pw})
package authflow
