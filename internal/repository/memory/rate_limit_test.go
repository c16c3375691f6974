package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStoreSlidingWindow(t *testing.T) {
	store := NewRateLimitStore()
	ctx := context.Background()
	base := time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_ = store.RecordAttempt(ctx, "k", base.Add(time.Duration(i)*time.Minute))
	}

	ref := base.Add(2 * time.Minute)
	count, err := store.CountAttempts(ctx, "k", 90*time.Second, ref)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 attempts, got %d (%v)", count, err)
	}

	oldest, ok, _ := store.OldestAttempt(ctx, "k", 90*time.Second, ref)
	if !ok || !oldest.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected oldest attempt %v %v", oldest, ok)
	}

	_ = store.TrimWindow(ctx, "k", 10*time.Second, base.Add(time.Hour))
	count, _ = store.CountAttempts(ctx, "k", time.Hour, base.Add(time.Hour))
	if count != 0 {
		t.Fatalf("expected window to be empty after trim, got %d", count)
	}
}
