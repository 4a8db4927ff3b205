package civiauth

import (
	"io"

	internalaudit "github.com/citizenhub/civiauth/internal/audit"
)

// Audit event types emitted by the store.
const (
	auditEventSignUp         = "signup"
	auditEventEmailVerify    = "email_verification"
	auditEventLogin          = "login"
	auditEventOTPRequest     = "otp_request"
	auditEventOTPVerify      = "otp_verify"
	auditEventProfileCreate  = "profile_create"
	auditEventProfileUpdate  = "profile_update"
	auditEventLogout         = "logout"
	auditEventSessionRefresh = "session_refresh"
	auditEventStateChange    = "state_change"
	auditEventStaleDiscard   = "stale_result_discarded"
)

// AuditEvent is a structured audit record emitted by the store.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the store's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
