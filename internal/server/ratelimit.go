package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks per-client request counts in fixed minute and hour
// windows plus a daily request and upload quota.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64

	now     func() time.Time
	clients map[string]*clientUsage
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int
	hourStart   time.Time
	hourCount   int
	day         time.Time
	dayCount    int
	dayBytes    int64
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	RequestsToday      int
	BytesToday         int64
}

// NewRateLimiter creates a limiter. A zero limit is not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		now:               time.Now,
		clients:           make(map[string]*clientUsage),
	}
}

// CheckRateLimit admits or rejects one request of dataSize bytes for client.
// Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usageFor(client, now)
	u.roll(now)

	if rl.requestsPerMinute > 0 && u.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute,
			RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.hourCount >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour,
			RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.day.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.dayCount >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay),
			Used: int64(u.dayCount), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.dayBytes+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.dayBytes, Resets: resets}
	}

	u.minuteCount++
	u.hourCount++
	u.dayCount++
	u.dayBytes += dataSize
	return nil
}

func (rl *RateLimiter) usageFor(client string, now time.Time) *clientUsage {
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, day: startOfDay(now)}
		rl.clients[client] = u
	}
	return u
}

// roll starts new windows once the current ones have elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minuteCount = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hourCount = now, 0
	}
	if day := startOfDay(now); !day.Equal(u.day) {
		u.day, u.dayCount, u.dayBytes = day, 0, 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GetUsage returns current usage for client.
func (rl *RateLimiter) GetUsage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[client]
	if !ok {
		return Usage{}
	}
	return Usage{
		RequestsThisMinute: u.minuteCount,
		RequestsThisHour:   u.hourCount,
		RequestsToday:      u.dayCount,
		BytesToday:         u.dayBytes,
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)",
		e.Type, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
