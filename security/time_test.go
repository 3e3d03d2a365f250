package security

import (
	"testing"
	"time"
)

func TestIsTokenExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		buffer    time.Duration
		want      bool
	}{
		{
			name:      "well before expiry",
			expiresAt: now.Add(1 * time.Hour),
			buffer:    5 * time.Minute,
			want:      false,
		},
		{
			name:      "already expired",
			expiresAt: now.Add(-1 * time.Minute),
			buffer:    5 * time.Minute,
			want:      true,
		},
		{
			// expiresAt = now+300s with a 300s buffer is expired exactly
			// at now.
			name:      "exactly at buffer boundary",
			expiresAt: now.Add(300 * time.Second),
			buffer:    300 * time.Second,
			want:      true,
		},
		{
			name:      "one second outside buffer",
			expiresAt: now.Add(301 * time.Second),
			buffer:    300 * time.Second,
			want:      false,
		},
		{
			name:      "inside buffer",
			expiresAt: now.Add(299 * time.Second),
			buffer:    300 * time.Second,
			want:      true,
		},
		{
			name:      "zero buffer at expiry instant",
			expiresAt: now,
			buffer:    0,
			want:      true,
		},
		{
			name:      "negative buffer treated as zero",
			expiresAt: now.Add(1 * time.Second),
			buffer:    -10 * time.Second,
			want:      false,
		},
		{
			name:      "zero expiry never expires",
			expiresAt: time.Time{},
			buffer:    5 * time.Minute,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTokenExpiredAt(tt.expiresAt, tt.buffer, now); got != tt.want {
				t.Errorf("IsTokenExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTokenExpiredUsesWallClock(t *testing.T) {
	if IsTokenExpired(time.Now().Add(1*time.Hour), DefaultSkewBuffer) {
		t.Error("token expiring in an hour reported expired")
	}
	if !IsTokenExpired(time.Now().Add(-1*time.Hour), DefaultSkewBuffer) {
		t.Error("token expired an hour ago reported valid")
	}
}
