package commands

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRateLimiter(3)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !r.Allow("u1") {
			t.Fatalf("call %d denied inside burst", i+1)
		}
	}
	if r.Allow("u1") {
		t.Fatal("4th call allowed past burst")
	}
	if !r.Allow("u2") {
		t.Fatal("other user should have their own bucket")
	}

	now = now.Add(20 * time.Second)
	if !r.Allow("u1") {
		t.Fatal("token not refilled after 20s")
	}
}

func TestRateLimiterNilAllowsAll(t *testing.T) {
	r := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !r.Allow("u") {
			t.Fatal("nil limiter denied")
		}
	}
}

func TestRateLimiterBoundsKeys(t *testing.T) {
	r := NewRateLimiter(1)
	for i := 0; i < maxTrackedKeys+10; i++ {
		r.Allow(fmt.Sprintf("user-%d", i))
	}
	if n := len(r.entries); n > maxTrackedKeys {
		t.Errorf("tracked %d keys, cap is %d", n, maxTrackedKeys)
	}
}
