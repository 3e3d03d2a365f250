package security

import "time"

const (
	// DefaultSkewBuffer is the default safety margin subtracted from token
	// expiry. A token inside the buffer is treated as already expired so it
	// is never handed to an API call that could outlive it mid-flight.
	//
	// Five minutes comfortably covers clock drift between the browser and
	// the provider plus the longest provisioning request the widget makes.
	DefaultSkewBuffer = 5 * time.Minute
)

// IsTokenExpired reports whether a token with the given expiry must be
// treated as expired under the skew buffer: expired iff now >= expiresAt -
// buffer. A zero expiresAt means the token never expires.
func IsTokenExpired(expiresAt time.Time, buffer time.Duration) bool {
	return IsTokenExpiredAt(expiresAt, buffer, time.Now())
}

// IsTokenExpiredAt is IsTokenExpired against an explicit current time.
// Split out so the boundary (now == expiresAt-buffer is expired,
// one second earlier is not) can be tested deterministically.
func IsTokenExpiredAt(expiresAt time.Time, buffer time.Duration, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	if buffer < 0 {
		buffer = 0
	}
	return !now.Before(expiresAt.Add(-buffer))
}
