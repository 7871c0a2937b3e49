package authflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/internal/audit"
)

// Audit types re-exported from the dispatcher package.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink
)

// Audit event names.
const (
	AuditEventCodeIssued            = audit.EventCodeIssued
	AuditEventCodeConsumed          = audit.EventCodeConsumed
	AuditEventCodeRejected          = audit.EventCodeRejected
	AuditEventLoginSuccess          = audit.EventLoginSuccess
	AuditEventLoginFailure          = audit.EventLoginFailure
	AuditEventSecondFactorRequired  = audit.EventSecondFactorRequired
	AuditEventSessionIssued         = audit.EventSessionIssued
	AuditEventRegistrationSuccess   = audit.EventRegistrationSuccess
	AuditEventRegistrationDuplicate = audit.EventRegistrationDuplicate
	AuditEventEmailVerified         = audit.EventEmailVerified
)

// NewChannelSink returns a sink exposing events on a buffered channel.
func NewChannelSink(buffer int) *audit.ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing one JSON object per event.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewSlogSink returns a sink logging events through log.
func NewSlogSink(log *slog.Logger) *audit.SlogSink { return audit.NewSlogSink(log) }

// AuditErrorCode is the error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrBanned             AuditErrorCode = "banned"
	auditErrCodeNotFound       AuditErrorCode = "code_not_found"
	auditErrCodeConsumed       AuditErrorCode = "code_consumed"
	auditErrCodeInvalidated    AuditErrorCode = "code_invalidated"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrStateMismatch      AuditErrorCode = "state_mismatch"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDelivery           AuditErrorCode = "delivery_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Step:      metadata["step"],
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserBanned):
		return auditErrBanned
	case errors.Is(err, ErrCodeNotFound):
		return auditErrCodeNotFound
	case errors.Is(err, ErrCodeConsumed):
		return auditErrCodeConsumed
	case errors.Is(err, ErrCodeInvalidated):
		return auditErrCodeInvalidated
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrStateMismatch):
		return auditErrStateMismatch
	case errors.Is(err, ErrEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDelivery
	case KindOf(err) == KindUnavailable:
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
