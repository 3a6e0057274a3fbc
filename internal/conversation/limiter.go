package conversation

import (
	"sync"
	"time"
)

// Rate limiting defaults: a short burst window against rapid-fire spamming
// and an absolute daily ceiling per sender.
const (
	DefaultMinuteLimit    = 10
	DefaultDayLimit       = 25
	DefaultNotifyCooldown = time.Minute
)

// RateLimiter tracks per-sender message rates with sliding windows. It also
// remembers when a sender was last told about throttling, so the notice is
// not itself spammed.
type RateLimiter struct {
	minuteLimit int
	dayLimit    int
	cooldown    time.Duration

	mu      sync.Mutex
	history map[string][]time.Time
	noticed map[string]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter with the given per-minute and per-day
// ceilings. Non-positive limits fall back to the defaults.
func NewRateLimiter(minuteLimit, dayLimit int) *RateLimiter {
	if minuteLimit <= 0 {
		minuteLimit = DefaultMinuteLimit
	}
	if dayLimit <= 0 {
		dayLimit = DefaultDayLimit
	}
	return &RateLimiter{
		minuteLimit: minuteLimit,
		dayLimit:    dayLimit,
		cooldown:    DefaultNotifyCooldown,
		history:     make(map[string][]time.Time),
		noticed:     make(map[string]time.Time),
		now:         time.Now,
	}
}

// Allow records one inbound message for the sender and reports whether it is
// within both rate windows.
func (l *RateLimiter) Allow(senderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	dayAgo := now.Add(-24 * time.Hour)
	minuteAgo := now.Add(-time.Minute)

	kept := l.history[senderID][:0]
	var lastMinute int
	for _, t := range l.history[senderID] {
		if t.Before(dayAgo) {
			continue
		}
		kept = append(kept, t)
		if t.After(minuteAgo) {
			lastMinute++
		}
	}

	if len(kept) >= l.dayLimit || lastMinute >= l.minuteLimit {
		l.history[senderID] = kept
		return false
	}
	l.history[senderID] = append(kept, now)
	return true
}

// ShouldNotify reports whether a throttle notice may be sent to the sender
// now, and records the notice when it may. At most one notice per cooldown.
func (l *RateLimiter) ShouldNotify(senderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.noticed[senderID]; ok && now.Sub(last) < l.cooldown {
		return false
	}
	l.noticed[senderID] = now
	return true
}
