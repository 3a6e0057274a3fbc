package conversation

import (
	"testing"
	"time"
)

func TestRateLimiterMinuteWindow(t *testing.T) {
	l := NewRateLimiter(3, 100)
	now := time.Unix(1_756_700_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("doc") {
			t.Fatalf("message %d should be allowed", i)
		}
	}
	if l.Allow("doc") {
		t.Error("fourth message inside a minute should be throttled")
	}

	// The window slides.
	now = now.Add(61 * time.Second)
	if !l.Allow("doc") {
		t.Error("message after the minute window should be allowed")
	}
}

func TestRateLimiterDailyCeiling(t *testing.T) {
	l := NewRateLimiter(100, 5)
	now := time.Unix(1_756_700_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if !l.Allow("doc") {
			t.Fatalf("message %d should be allowed", i)
		}
		now = now.Add(2 * time.Minute)
	}
	if l.Allow("doc") {
		t.Error("sixth message inside a day should be throttled")
	}

	now = now.Add(25 * time.Hour)
	if !l.Allow("doc") {
		t.Error("message after the day window should be allowed")
	}
}

func TestRateLimiterIsPerSender(t *testing.T) {
	l := NewRateLimiter(1, 10)
	if !l.Allow("a") {
		t.Fatal("first message for a should pass")
	}
	if l.Allow("a") {
		t.Error("second message for a should be throttled")
	}
	if !l.Allow("b") {
		t.Error("sender b must not be affected by a's throttle")
	}
}

func TestShouldNotifyCooldown(t *testing.T) {
	l := NewRateLimiter(1, 10)
	now := time.Unix(1_756_700_000, 0)
	l.now = func() time.Time { return now }

	if !l.ShouldNotify("doc") {
		t.Fatal("first notice should be allowed")
	}
	if l.ShouldNotify("doc") {
		t.Error("second notice inside the cooldown should be suppressed")
	}
	now = now.Add(61 * time.Second)
	if !l.ShouldNotify("doc") {
		t.Error("notice after the cooldown should be allowed")
	}
}
