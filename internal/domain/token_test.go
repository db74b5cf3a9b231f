package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanvasToken_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		delta     time.Duration
		want      bool
	}{
		{"already expired, zero buffer", now.Add(-time.Minute), 0, true},
		{"expires exactly now, zero buffer", now, 0, true},
		{"fresh token, zero buffer", now.Add(time.Hour), 0, false},
		{"inside buffer", now.Add(2 * time.Minute), 5 * time.Minute, true},
		{"on buffer boundary", now.Add(5 * time.Minute), 5 * time.Minute, true},
		{"outside buffer", now.Add(10 * time.Minute), 5 * time.Minute, false},
		{"zero expiry never matches", time.Time{}, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := CanvasToken{ExpiresAt: tt.expiresAt}
			require.Equal(t, tt.want, token.ExpiresWithin(tt.delta, now))
		})
	}
}
