package authflow

import "github.com/MrEthical07/authflow/autherr"

// Error classification re-exported for callers that only import authflow.
type (
	Error = autherr.Error
	Kind  = autherr.Kind
)

const (
	KindInternal          = autherr.KindInternal
	KindNotFound          = autherr.KindNotFound
	KindUnauthorized      = autherr.KindUnauthorized
	KindBadRequest        = autherr.KindBadRequest
	KindDuplicateResource = autherr.KindDuplicateResource
	KindNotImplemented    = autherr.KindNotImplemented
	KindDelivery          = autherr.KindDelivery
	KindUnavailable       = autherr.KindUnavailable
)

var (
	// ErrUserNotFound is returned when no account owns the given email.
	ErrUserNotFound = autherr.ErrUserNotFound
	// ErrCodeNotFound is returned for unknown, malformed or wrong-purpose codes.
	ErrCodeNotFound = autherr.ErrCodeNotFound
	// ErrCodeConsumed is returned when a code was already redeemed.
	ErrCodeConsumed = autherr.ErrCodeConsumed
	// ErrCodeInvalidated is returned when a newer code replaced this one.
	ErrCodeInvalidated = autherr.ErrCodeInvalidated
	// ErrCodeExpired is returned when a code outlived its expiry.
	ErrCodeExpired = autherr.ErrCodeExpired
	// ErrStateMismatch is returned when the caller state differs from the one
	// the code was minted with.
	ErrStateMismatch      = autherr.ErrStateMismatch
	ErrInvalidCredentials = autherr.ErrInvalidCredentials
	ErrUserBanned         = autherr.ErrUserBanned
	ErrEmailTaken         = autherr.ErrEmailTaken
	// ErrNotImplemented is returned for the reserved TOTP step.
	ErrNotImplemented = autherr.ErrNotImplemented
	ErrWeakPassword   = autherr.ErrWeakPassword
	ErrRateLimited    = autherr.ErrRateLimited
	ErrInvalidRequest = autherr.ErrInvalidRequest
	ErrDeliveryFailed = autherr.ErrDeliveryFailed
	ErrEngineNotReady = autherr.ErrEngineNotReady
)

// KindOf reports how err should be presented to a client.
func KindOf(err error) Kind { return autherr.KindOf(err) }

// CodeOf reports the client-facing sub-code carried by err, if any.
func CodeOf(err error) string { return autherr.CodeOf(err) }
