package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. Token values
// and user identifiers are hashed before logging; the audit trail is useful
// for incident review without itself becoming a credential store.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	ClientID  string
	Origin    string
	Severity  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event. Safe on a nil receiver.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()
	if event.Severity == "" {
		event.Severity = "info"
	}

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"client_id", event.ClientID,
		"origin", event.Origin,
		"severity", event.Severity,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogConnectStarted logs the start of an interactive authorization attempt.
func (a *Auditor) LogConnectStarted(clientID, transport string) {
	a.LogEvent(Event{
		Type:     "connect_started",
		ClientID: clientID,
		Details: map[string]any{
			"transport": transport,
		},
	})
}

// LogPopupBlocked logs that the runtime refused to open the authorization popup.
func (a *Auditor) LogPopupBlocked(clientID string) {
	a.LogEvent(Event{
		Type:     "popup_blocked",
		ClientID: clientID,
	})
}

// LogStateMismatch logs a rejected callback whose state did not match the
// issued value. Treated as a potential CSRF/replay attempt.
func (a *Auditor) LogStateMismatch(clientID string) {
	a.LogEvent(Event{
		Type:     "state_mismatch",
		ClientID: clientID,
		Severity: "critical",
	})
}

// LogCodeExchanged logs a successful authorization code exchange.
// The token itself is never logged; only a hash for correlation.
func (a *Auditor) LogCodeExchanged(clientID, accessToken string) {
	a.LogEvent(Event{
		Type:     "code_exchanged",
		ClientID: clientID,
		Details: map[string]any{
			"token_hash": HashForLogging(accessToken),
		},
	})
}

// LogTokenRefreshed logs a successful silent refresh.
func (a *Auditor) LogTokenRefreshed(clientID string, rotated bool) {
	a.LogEvent(Event{
		Type:     "token_refreshed",
		ClientID: clientID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogRefreshFailed logs a failed refresh. Refresh failure terminates the
// session, so this always precedes a disconnect event.
func (a *Auditor) LogRefreshFailed(clientID, reason string) {
	a.LogEvent(Event{
		Type:     "refresh_failed",
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogDisconnected logs an explicit or forced disconnect.
func (a *Auditor) LogDisconnected(clientID, cause string) {
	a.LogEvent(Event{
		Type:     "disconnected",
		ClientID: clientID,
		Details: map[string]any{
			"cause": cause,
		},
	})
}

// LogMessageDropped logs a cross-window message that was ignored, either
// because its origin was unexpected or because the popup attempt it belongs
// to had already completed.
func (a *Auditor) LogMessageDropped(origin, reason string) {
	a.LogEvent(Event{
		Type:   "message_dropped",
		Origin: origin,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// HashForLogging creates a SHA256 hash prefix of sensitive data for logging.
func HashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
