package connect

import (
	"log/slog"
	"time"

	"github.com/archivault/connect-widget/credentials"
	"github.com/archivault/connect-widget/host"
	"github.com/archivault/connect-widget/instrumentation"
	"github.com/archivault/connect-widget/messaging"
	"github.com/archivault/connect-widget/provider"
	"github.com/archivault/connect-widget/security"
	"github.com/archivault/connect-widget/storage"
)

// Config holds the widget controller configuration.
// Structured using composition: resolved credentials, storage, transport and
// security concerns are injected per browsing context.
type Config struct {
	// ClientConfiguration is the resolved OAuth client configuration
	// (required). Obtain it from credentials.Resolver.
	ClientConfiguration *credentials.ClientConfiguration

	// TokenStore persists the token set under the dual-storage policy
	// (required).
	TokenStore *storage.TokenStore

	// OAuth is the token endpoint client (required).
	OAuth *provider.Client

	// Environment describes this browsing context.
	Environment host.Environment

	// Popup transport: Opener opens the authorization popup, Channel
	// receives the terminal message, Watcher bounds the attempt.
	Opener  messaging.Opener
	Channel messaging.Channel
	Watcher messaging.WatcherConfig

	// Navigator is the full-page redirect fallback when popups are blocked.
	Navigator host.Navigator

	// StateStore pins the most recently issued authorization nonce so a
	// callback can be matched to the attempt that produced it. Defaults to
	// in-memory pinning only (sufficient for popup transport; redirect
	// transport needs a session-scoped store to survive the reload).
	StateStore storage.SessionStore

	// Guard rate-limits token endpoint calls per client id. Optional.
	Guard *security.Guard

	// Auditor records security-relevant events. Optional.
	Auditor *security.Auditor

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation for metrics and tracing. Optional.
	Instrumentation *instrumentation.Instrumentation

	// OnStatusChange is invoked after every status transition. Optional.
	// Called synchronously; keep it cheap.
	OnStatusChange func(Status)

	// AttemptTimeout bounds a popup authorization attempt.
	// Default: 2 minutes.
	AttemptTimeout time.Duration

	// Now is the time source, for tests. Defaults to time.Now.
	Now func() time.Time
}
