package ratelimitsvc

import (
	"context"
	"testing"
	"time"
)

func Test_memoryLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 5, 10, 12, 0, 0, 0, time.UTC)
	limiter := &memoryLimiter{
		windows: make(map[string]*windowCount),
		now:     func() time.Time { return now },
	}

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "k", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow() failed: %v", err)
		}
		if !ok {
			t.Errorf("Allow() hit %d: got false, want true", i+1)
		}
	}
	ok, err := limiter.Allow(ctx, "k", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow() failed: %v", err)
	}
	if ok {
		t.Error("Allow() over limit: got true, want false")
	}

	// other keys are counted separately
	if ok, _ = limiter.Allow(ctx, "k2", 3, time.Minute); !ok {
		t.Error("Allow() separate key: got false, want true")
	}

	// window expires
	now = now.Add(2 * time.Minute)
	if ok, _ = limiter.Allow(ctx, "k", 3, time.Minute); !ok {
		t.Error("Allow() after window reset: got false, want true")
	}
}
