package authcore

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
)

// AuditEvent is one security-relevant occurrence. It never carries tokens,
// secrets or hashes.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from a single dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a sink whose Events channel holds up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// Audit event types.
const (
	AuditTokenPairIssued  = "token_pair_issued"
	AuditClaimRejected    = "claim_validation_failed"
	AuditLoginSuccess     = "login_success"
	AuditLoginFailure     = "login_failure"
	AuditLogout           = "logout"
	AuditRefreshSuccess   = "refresh_success"
	AuditRefreshInvalid   = "refresh_invalid"
	AuditAPITokenIssued   = "api_token_issued"
	AuditAPITokenRevoked  = "api_token_revoked"
	AuditAPITokenRejected = "api_token_rejected"
	AuditRateLimited      = "rate_limited"
)
