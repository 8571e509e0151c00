package signal

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	limiter := NewRateLimiter(2, 30*time.Millisecond)

	if !limiter.Allow("alice") {
		t.Fatal("first frame must pass")
	}
	if !limiter.Allow("alice") {
		t.Fatal("second frame must pass")
	}
	if limiter.Allow("alice") {
		t.Fatal("third frame must be blocked")
	}

	time.Sleep(40 * time.Millisecond)

	if !limiter.Allow("alice") {
		t.Fatal("frame after window expiry must pass")
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	if !limiter.Allow("alice") {
		t.Fatal("alice's first frame must pass")
	}
	if !limiter.Allow("bob") {
		t.Fatal("bob must have his own budget")
	}
	if limiter.Allow("alice") {
		t.Fatal("alice must be blocked")
	}
}
