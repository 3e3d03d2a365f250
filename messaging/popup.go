package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrPopupBlocked is returned by an Opener when the runtime refuses to open
// a popup window. The widget falls back to full-page redirect.
var ErrPopupBlocked = errors.New("popup blocked")

// ErrPopupClosed is returned by the watcher when the popup closed without
// posting a terminal message.
var ErrPopupClosed = errors.New("popup closed before completing authorization")

// ErrPopupTimeout is returned by the watcher when the popup stayed open past
// the attempt deadline.
var ErrPopupTimeout = errors.New("authorization attempt timed out")

// Handle is an open popup window.
type Handle interface {
	// Closed reports whether the window has been closed.
	Closed() bool

	// Close closes the window. Closing an already-closed window is a no-op.
	Close() error
}

// Opener opens popup windows. The embedded runtime provides the real
// implementation; it returns ErrPopupBlocked when the runtime refuses.
type Opener interface {
	Open(url string) (Handle, error)
}

const (
	// DefaultWatchInterval is how often the watcher polls the popup.
	DefaultWatchInterval = 500 * time.Millisecond

	// DefaultWatchTimeout bounds how long a single authorization attempt
	// may keep its popup open.
	DefaultWatchTimeout = 2 * time.Minute
)

// WatcherConfig configures a popup watcher.
type WatcherConfig struct {
	// Interval between Closed() polls. Defaults to DefaultWatchInterval.
	Interval time.Duration

	// Timeout for the whole attempt. Defaults to DefaultWatchTimeout.
	Timeout time.Duration

	// Logger for watcher diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Watch polls the popup until it closes, the timeout elapses, or ctx is
// done. It returns ErrPopupClosed when the user closed the window,
// ErrPopupTimeout on deadline, and ctx.Err() on cancellation. The caller
// races this against message arrival: cancelling ctx when the terminal
// message lands is the normal exit path.
func Watch(ctx context.Context, handle Handle, cfg WatcherConfig) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultWatchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			logger.Warn("authorization popup timed out", "timeout", timeout)
			if err := handle.Close(); err != nil {
				logger.Debug("failed to close timed-out popup", "error", err)
			}
			return ErrPopupTimeout
		case <-ticker.C:
			if handle.Closed() {
				return ErrPopupClosed
			}
		}
	}
}
