package authflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/notify"
)

// Guards the public surface consumers compile against.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authflow.New
	_ = authflow.DefaultConfig
	_ = authflow.LoadConfigFile
	_ = authflow.WithClientIP
	_ = authflow.WithUserAgent

	var _ *authflow.Engine
	var _ authflow.Config
	var _ authflow.RegisterRequest
	var _ authflow.RegisterResult
	var _ authflow.VerifyEmailResult
	var _ authflow.AuditSink
	var _ authflow.EmailSender = authflow.EmailSenderFunc(nil)

	var _ authflow.StepRequest = authflow.EmailStep{}
	var _ authflow.StepRequest = authflow.PasswordStep{}
	var _ authflow.StepRequest = authflow.CodeStep{}
	var _ authflow.StepRequest = authflow.TotpStep{}

	var _ authflow.Result = (*authflow.CodeSent)(nil)
	var _ authflow.Result = (*authflow.PendingStep)(nil)
	var _ authflow.Result = (*authflow.SessionIssued)(nil)

	var _ error = authflow.ErrUserNotFound
	var _ error = authflow.ErrCodeNotFound
	var _ error = authflow.ErrCodeConsumed
	var _ error = authflow.ErrInvalidCredentials
	var _ error = authflow.ErrEmailTaken
	var _ error = authflow.ErrNotImplemented
	var _ error = authflow.ErrWeakPassword
	var _ error = authflow.ErrRateLimited
}

// ExampleEngine_Authenticate walks an emailed login code through to a session.
func ExampleEngine_Authenticate() {
	mr, _ := miniredis.Run()
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := authflow.DefaultConfig()
	cfg.Session.TTL = 24 * time.Hour
	cfg.Session.TokenTTL = 15 * time.Minute
	cfg.Verification.CodeTTL = time.Hour
	cfg.Verification.LoginCodeTTL = 10 * time.Minute

	outbox := &notify.Recorder{}
	engine, err := authflow.New().WithConfig(cfg).WithRedis(rdb).WithEmailSender(outbox).Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()
	ctx := context.Background()

	if _, err := engine.Register(ctx, authflow.RegisterRequest{Email: "Alice@Example.com"}); err != nil {
		fmt.Println(err)
		return
	}

	res, _ := engine.Authenticate(ctx, authflow.EmailStep{Email: "alice@example.com"})
	sent := res.(*authflow.CodeSent)
	fmt.Println(sent.Type, sent.Email)

	last, _ := outbox.Last()
	res, err = engine.Authenticate(ctx, authflow.CodeStep{Code: notify.CodeFromLink(last.Link)})
	if err != nil {
		fmt.Println(err)
		return
	}
	_, ok := res.(*authflow.SessionIssued)
	fmt.Println("session issued:", ok)

	_, err = engine.Authenticate(ctx, authflow.CodeStep{Code: notify.CodeFromLink(last.Link)})
	fmt.Println(authflow.CodeOf(err))

	// Output:
	// login alice@example.com
	// session issued: true
	// CODE_CONSUMED
}
