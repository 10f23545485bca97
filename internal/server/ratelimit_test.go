package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move the limiter's time forward.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(perMinute, perHour, perDay int, dataPerDay int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, dataPerDay)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)
	for range 100 {
		require.NoError(t, rl.CheckRateLimit("user1", 100))
	}
	usage := rl.GetUsage("user1")
	assert.Equal(t, 100, usage.RequestsToday)
	assert.Equal(t, int64(10000), usage.BytesToday)
}

func TestRateLimiter_UnknownClientUsage(t *testing.T) {
	rl := NewRateLimiter(1, 1, 1, 1)
	assert.Equal(t, Usage{}, rl.GetUsage("nobody"))
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newClockedLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("u", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.CheckRateLimit("u", 0))

	err := rl.CheckRateLimit("u", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 50*time.Second, rle.RetryAfter)

	// Rejected requests are not counted.
	assert.Equal(t, 2, rl.GetUsage("u").RequestsThisMinute)

	clock.advance(50 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("u", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newClockedLimiter(0, 3, 0, 0)
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("u", 0))
		clock.advance(5 * time.Minute)
	}
	err := rl.CheckRateLimit("u", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 45*time.Minute, rle.RetryAfter)

	clock.advance(45 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("u", 0))
}

func TestRateLimiter_DailyRequests(t *testing.T) {
	rl, clock := newClockedLimiter(0, 0, 2, 0)
	require.NoError(t, rl.CheckRateLimit("u", 0))
	require.NoError(t, rl.CheckRateLimit("u", 0))

	err := rl.CheckRateLimit("u", 0)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("u", 0))
}

func TestRateLimiter_DailyData(t *testing.T) {
	rl, _ := newClockedLimiter(0, 0, 0, 1000)
	require.NoError(t, rl.CheckRateLimit("u", 600))

	err := rl.CheckRateLimit("u", 500)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	assert.NoError(t, rl.CheckRateLimit("u", 400))
}

func TestRateLimiter_ClientsIndependent(t *testing.T) {
	rl, _ := newClockedLimiter(1, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("b", 0))
	assert.Error(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimitErrorMessages(t *testing.T) {
	e := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 2s)", e.Error())

	q := &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "quota exceeded for data (used: 9, limit: 10, resets: 2026-01-01T00:00:00Z)", q.Error())
}
