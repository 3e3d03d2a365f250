package security

import (
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// Guard provides per-client-id rate limiting of token endpoint calls using a
// token bucket. A browsing context only ever tracks a handful of client ids,
// so there is no eviction machinery; the map is bounded by maxEntries as a
// safety valve against a caller generating identifiers.
type Guard struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	rate       rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger
}

const guardMaxEntries = 64

// NewGuard creates a token endpoint guard allowing callsPerMinute sustained
// calls per client id with the given burst. A zero callsPerMinute disables
// limiting (Allow always returns true).
func NewGuard(callsPerMinute, burst int, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if burst < 1 {
		burst = 1
	}
	return &Guard{
		limiters:   make(map[string]*rate.Limiter),
		rate:       rate.Limit(float64(callsPerMinute) / 60.0),
		burst:      burst,
		maxEntries: guardMaxEntries,
		logger:     logger,
	}
}

// Allow reports whether another token endpoint call for clientID may proceed.
func (g *Guard) Allow(clientID string) bool {
	if g.rate <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.limiters[clientID]
	if !ok {
		if len(g.limiters) >= g.maxEntries {
			// A widget should never see this many client ids; refuse rather
			// than grow without bound.
			g.logger.Warn("token endpoint guard entry limit reached", "client_id", clientID)
			return false
		}
		limiter = rate.NewLimiter(g.rate, g.burst)
		g.limiters[clientID] = limiter
	}

	return limiter.Allow()
}

// Reset forgets the limiter state for a client id. Called on disconnect so a
// fresh interactive login is never penalized by earlier refresh activity.
func (g *Guard) Reset(clientID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.limiters, clientID)
}
