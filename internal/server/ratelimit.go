package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig configures per-client request limits and label quotas.
// Zero disables the individual limit.
type RateLimitConfig struct {
	Enabled           bool  `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int   `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	RequestsPerHour   int   `yaml:"requests_per_hour" mapstructure:"requests_per_hour"`
	MaxRequestsPerDay int   `yaml:"max_requests_per_day" mapstructure:"max_requests_per_day"`
	MaxLabelsPerDay   int64 `yaml:"max_labels_per_day" mapstructure:"max_labels_per_day"`
}

// RateLimiter tracks per-client request windows and daily label quotas.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage is the usage of one client. Windows are fixed and start at
// the first request after the previous window ran out.
type ClientUsage struct {
	MinuteStart   time.Time
	HourStart     time.Time
	Day           time.Time
	RequestsMin   int
	RequestsHour  int
	RequestsToday int
	LabelsToday   int64
}

// NewRateLimiter creates a limiter for cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, clients: make(map[string]*ClientUsage), now: time.Now}
}

// Allow counts one request for clientID, or rejects it with a
// *RateLimitError or *QuotaExceededError.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usage(clientID, now)

	if rl.cfg.RequestsPerMinute > 0 && u.RequestsMin >= rl.cfg.RequestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.cfg.RequestsPerMinute, RetryAfter: u.MinuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.cfg.RequestsPerHour > 0 && u.RequestsHour >= rl.cfg.RequestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.cfg.RequestsPerHour, RetryAfter: u.HourStart.Add(time.Hour).Sub(now)}
	}
	if rl.cfg.MaxRequestsPerDay > 0 && u.RequestsToday >= rl.cfg.MaxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.cfg.MaxRequestsPerDay), Used: int64(u.RequestsToday), Resets: nextDay(now)}
	}

	u.RequestsMin++
	u.RequestsHour++
	u.RequestsToday++
	return nil
}

// ConsumeLabels charges n labels against clientID's daily quota. A request
// that would exceed the quota is rejected whole.
func (rl *RateLimiter) ConsumeLabels(clientID string, n int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usage(clientID, now)
	if rl.cfg.MaxLabelsPerDay > 0 && u.LabelsToday+n > rl.cfg.MaxLabelsPerDay {
		return &QuotaExceededError{Type: "labels", Limit: rl.cfg.MaxLabelsPerDay, Used: u.LabelsToday, Resets: nextDay(now)}
	}
	u.LabelsToday += n
	return nil
}

// usage returns the client's record with expired windows reset.
func (rl *RateLimiter) usage(clientID string, now time.Time) *ClientUsage {
	u, ok := rl.clients[clientID]
	if !ok {
		u = &ClientUsage{MinuteStart: now, HourStart: now, Day: startOfDay(now)}
		rl.clients[clientID] = u
	}
	if now.Sub(u.MinuteStart) >= time.Minute {
		u.MinuteStart, u.RequestsMin = now, 0
	}
	if now.Sub(u.HourStart) >= time.Hour {
		u.HourStart, u.RequestsHour = now, 0
	}
	if day := startOfDay(now); !day.Equal(u.Day) {
		u.Day, u.RequestsToday, u.LabelsToday = day, 0, 0
	}
	return u
}

// Usage returns a copy of the client's current usage.
func (rl *RateLimiter) Usage(clientID string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[clientID]; ok {
		return *u
	}
	return ClientUsage{}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time { return startOfDay(t).AddDate(0, 0, 1) }

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "labels"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
