package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := newRateLimiter(2)
	r.now = func() time.Time { return now }

	require.True(t, r.allow())
	require.True(t, r.allow())
	require.False(t, r.allow())

	now = now.Add(time.Minute)
	require.True(t, r.allow())
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newRateLimiter(0)
	for i := 0; i < 1000; i++ {
		require.True(t, r.allow())
	}

	var nilLimiter *rateLimiter
	require.True(t, nilLimiter.allow())
}
