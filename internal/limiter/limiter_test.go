package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBlocksAfterMax(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected allowed, got %v %v", i, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Fatalf("expected third attempt to be blocked")
	}
	if ok, _ := l.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatalf("expected other keys to be unaffected")
	}
}

func TestMemoryWindowSlides(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(1, time.Minute)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("expected first attempt allowed")
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("expected second attempt blocked")
	}
	clock = clock.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("expected attempt allowed after the window")
	}
}

func TestMemoryForgetsQuietClients(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(3, time.Minute)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	for _, key := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if ok, _ := l.Allow(ctx, key); !ok {
			t.Fatalf("expected %s allowed", key)
		}
	}
	if len(l.entries) != 3 {
		t.Fatalf("expected 3 tracked clients, got %d", len(l.entries))
	}

	clock = clock.Add(2 * time.Minute)
	if ok, _ := l.Allow(ctx, "10.0.0.4"); !ok {
		t.Fatalf("expected new client allowed")
	}
	if len(l.entries) != 1 {
		t.Fatalf("expected quiet clients dropped, got %d entries", len(l.entries))
	}
	if _, ok := l.entries["10.0.0.4"]; !ok {
		t.Fatalf("expected current client kept")
	}
}
