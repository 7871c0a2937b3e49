// Package autherr defines the error taxonomy shared by every authflow package.
//
// Each failure carries a [Kind] that an HTTP layer can map to a status code and,
// for [KindBadRequest], a machine-readable Code telling the client what to do
// next. Specific conditions are exposed as sentinel values so callers can match
// them with [errors.Is].
package autherr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the calling transport.
type Kind uint8

const (
	// KindInternal is reported for errors that carry no authflow classification.
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindBadRequest
	KindDuplicateResource
	KindNotImplemented
	// KindDelivery marks failures of the email collaborator.
	KindDelivery
	// KindUnavailable marks storage, cache or hashing backend failures.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindDuplicateResource:
		return "duplicate_resource"
	case KindNotImplemented:
		return "not_implemented"
	case KindDelivery:
		return "delivery"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Client-facing sub-codes for KindBadRequest.
const (
	CodeCodeNotFound   = "CODE-NOT-FOUND"
	CodeCodeConsumed   = "CODE_CONSUMED"
	CodeResend         = "RESEND"
	CodeWeakPassword   = "WEAK-PASSWORD"
	CodeRateLimited    = "RATE-LIMITED"
	CodeInvalidRequest = "INVALID-REQUEST"
)

// Error is a classified authflow failure.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without a cause.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap classifies err. The result still matches err through errors.Is.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Unavailable wraps a backend failure, keeping an existing classification intact.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: KindUnavailable, Msg: op, Err: err}
}

// KindOf reports the classification of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf reports the first non-empty sub-code found in err's chain.
func CodeOf(err error) string {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Code != "" {
			return ae.Code
		}
		err = errors.Unwrap(err)
	}
	return ""
}

var (
	ErrUserNotFound = New(KindNotFound, "", "user not found")

	ErrCodeNotFound    = New(KindBadRequest, CodeCodeNotFound, "verification code not found")
	ErrCodeConsumed    = New(KindBadRequest, CodeCodeConsumed, "verification code already consumed")
	ErrCodeInvalidated = New(KindBadRequest, CodeResend, "verification code invalidated")
	ErrCodeExpired     = New(KindBadRequest, CodeResend, "verification code expired")
	ErrStateMismatch   = New(KindBadRequest, CodeResend, "verification code state mismatch")

	// ErrInvalidCredentials is worded identically for unknown and wrong passwords.
	ErrInvalidCredentials = New(KindUnauthorized, "", "invalid email or password")
	ErrUserBanned         = New(KindUnauthorized, "", "account is banned")

	ErrEmailTaken      = New(KindDuplicateResource, "", "email already registered")
	ErrNotImplemented  = New(KindNotImplemented, "", "not implemented")
	ErrWeakPassword    = New(KindBadRequest, CodeWeakPassword, "password does not meet strength rules")
	ErrRateLimited     = New(KindBadRequest, CodeRateLimited, "too many codes requested, try again later")
	ErrInvalidRequest  = New(KindBadRequest, CodeInvalidRequest, "invalid request")
	ErrDeliveryFailed  = New(KindDelivery, "", "code delivery failed")
	ErrEngineNotReady  = New(KindInternal, "", "engine not initialized")
)
