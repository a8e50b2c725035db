package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/jwt"
)

// AuditErrorCode is the coarse failure reason recorded on audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized    AuditErrorCode = "unauthorized"
	auditErrMissingClaim    AuditErrorCode = "missing_claim"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrSecretPolicy    AuditErrorCode = "secret_policy"
	auditErrConfiguration   AuditErrorCode = "configuration"
	auditErrInternal        AuditErrorCode = "internal_error"
)

// EmitAudit queues event on the engine's dispatcher. Timestamp, IP and user
// agent are filled from the clock and ctx when left empty. It is a no-op
// when auditing is disabled.
func (e *Engine) EmitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
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

	e.EmitAudit(ctx, AuditEvent{
		EventType: eventType,
		Subject:   subject,
		SessionID: sessionID,
		Success:   success,
		Reason:    AuditReason(err),
		Metadata:  metadata,
	})
}

// AuditReason maps err to the reason string recorded on audit events.
// It returns "" for nil.
func AuditReason(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, jwt.ErrMissingClaim):
		return string(auditErrMissingClaim)
	case errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrAPITokenInvalid):
		return string(auditErrInvalidToken)
	case errors.Is(err, ErrSessionNotFound):
		return string(auditErrSessionNotFound)
	case errors.Is(err, ErrSecretTooLong),
		errors.Is(err, ErrEmptySecret):
		return string(auditErrSecretPolicy)
	case errors.Is(err, ErrConfiguration):
		return string(auditErrConfiguration)
	case errors.Is(err, ErrEngineNotReady):
		return string(auditErrUnauthorized)
	default:
		return string(auditErrInternal)
	}
}
