package internal

import (
	"testing"
	"time"
)

func TestRateLimiterBurstAndRecovery(t *testing.T) {
	limiter := NewRateLimiter(3, 50*time.Millisecond)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("u") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if limiter.Allow("u") {
		t.Fatalf("request beyond the burst should be denied")
	}
	if !limiter.Allow("other") {
		t.Fatalf("keys must be limited independently")
	}
	time.Sleep(60 * time.Millisecond)
	if !limiter.Allow("u") {
		t.Fatalf("window expiry should admit new requests")
	}
}

func TestRateLimiterForget(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	if !limiter.Allow("u") {
		t.Fatalf("first request should pass")
	}
	if limiter.Allow("u") {
		t.Fatalf("second request should be denied")
	}
	limiter.Forget("u")
	if !limiter.Allow("u") {
		t.Fatalf("forgotten key starts fresh")
	}
}
