package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/archivault/connect-widget/internal/util"
	"github.com/archivault/connect-widget/security"
)

// ErrChannelClosed is returned when the other end of a channel has gone away.
var ErrChannelClosed = errors.New("messaging channel closed")

// Envelope is a message together with the origin it was posted from. The
// transport attaches the origin; it is never taken from message content.
type Envelope struct {
	Message *Message
	Origin  string
}

// Channel is one end of a cross-window message transport. The embedded
// runtime provides a real implementation; NewPair builds an in-process one.
type Channel interface {
	// Post delivers a message to the other end, addressed to targetOrigin.
	// Delivery fails if the receiving context's origin does not match.
	Post(ctx context.Context, targetOrigin string, msg *Message) error

	// Receive blocks until a message arrives or ctx is done.
	Receive(ctx context.Context) (*Envelope, error)

	// Close releases the channel. Subsequent operations fail with
	// ErrChannelClosed.
	Close() error
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Channel to receive on. Required.
	Channel Channel

	// ExpectedOrigin is the only origin messages are accepted from.
	// Compared exactly after normalization. Required.
	ExpectedOrigin string

	// Logger for dropped-message diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Auditor records dropped messages. Optional.
	Auditor *security.Auditor
}

// Listener receives authorization messages on the widget side, dropping
// anything from an unexpected origin or tied to a different attempt.
type Listener struct {
	channel        Channel
	expectedOrigin string
	logger         *slog.Logger
	auditor        *security.Auditor
}

// NewListener creates a Listener.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Channel == nil {
		return nil, errors.New("channel is required")
	}
	if cfg.ExpectedOrigin == "" {
		return nil, errors.New("expected origin is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		channel:        cfg.Channel,
		expectedOrigin: util.NormalizeOrigin(cfg.ExpectedOrigin),
		logger:         logger,
		auditor:        cfg.Auditor,
	}, nil
}

// Await blocks until a terminal message for attemptID arrives from the
// expected origin, or ctx is done. Messages from other origins or other
// attempts are dropped silently (logged, never surfaced to the caller).
func (l *Listener) Await(ctx context.Context, attemptID string) (*Message, error) {
	for {
		env, err := l.channel.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if msg := l.accept(env, attemptID); msg != nil {
			return msg, nil
		}
	}
}

// accept returns the message if it passes origin and attempt checks,
// nil otherwise.
func (l *Listener) accept(env *Envelope, attemptID string) *Message {
	origin := util.NormalizeOrigin(env.Origin)
	if origin != l.expectedOrigin {
		l.drop(env.Origin, "origin mismatch")
		return nil
	}
	if err := env.Message.Validate(); err != nil {
		l.drop(env.Origin, "invalid payload")
		return nil
	}
	if attemptID != "" && env.Message.AttemptID != attemptID {
		l.drop(env.Origin, "stale attempt")
		return nil
	}
	return env.Message
}

func (l *Listener) drop(origin, reason string) {
	l.logger.Debug("dropped authorization message",
		"origin", util.SafeTruncate(origin, 64),
		"reason", reason)
	if l.auditor != nil {
		l.auditor.LogMessageDropped(origin, reason)
	}
}

// pairEnd is one end of an in-process channel pair. done and closeOnce are
// shared between both ends, so closing either end closes the pair.
type pairEnd struct {
	origin    string
	in        chan *Envelope
	out       chan *Envelope
	done      chan struct{}
	closeOnce *sync.Once
}

// Compile-time interface check.
var _ Channel = (*pairEnd)(nil)

// NewPair builds two connected in-process channel ends. Each end posts with
// its own origin attached, so origin checks behave as they would across real
// windows. Used by the standalone example and tests.
func NewPair(originA, originB string) (Channel, Channel) {
	ab := make(chan *Envelope, 8)
	ba := make(chan *Envelope, 8)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &pairEnd{origin: originA, in: ba, out: ab, done: done, closeOnce: once}
	b := &pairEnd{origin: originB, in: ab, out: ba, done: done, closeOnce: once}
	return a, b
}

func (e *pairEnd) Post(ctx context.Context, targetOrigin string, msg *Message) error {
	// targetOrigin addressing is enforced by real transports; the in-process
	// pair records the sender origin and lets the listener do the check.
	_ = targetOrigin
	env := &Envelope{Message: msg, Origin: e.origin}
	select {
	case e.out <- env:
		return nil
	case <-e.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *pairEnd) Receive(ctx context.Context) (*Envelope, error) {
	select {
	case env := <-e.in:
		return env, nil
	case <-e.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *pairEnd) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}
