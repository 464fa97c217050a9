package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/developmentseed/stac-collection-federator/pkg/logging"
)

// setupTestRedis connects to a local Redis on a dedicated DB, skipping the
// test when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	return NewTracker(setupTestRedis(t), cfg, logging.NewLogger("breaker-test"))
}

func TestTracker_ClosedByDefault(t *testing.T) {
	tracker := newTestTracker(t, Config{})

	allowed, err := tracker.Allow(context.Background(), "src")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Error("fresh source should be allowed")
	}
}

func TestTracker_OpensAtThreshold(t *testing.T) {
	tracker := newTestTracker(t, Config{FailureThreshold: 3, Cooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := tracker.RecordFailure(ctx, "src"); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		allowed, err := tracker.Allow(ctx, "src")
		if err != nil || !allowed {
			t.Fatalf("below threshold: allowed=%v, err=%v", allowed, err)
		}
	}

	if err := tracker.RecordFailure(ctx, "src"); err != nil {
		t.Fatalf("RecordFailure at threshold: %v", err)
	}

	allowed, err := tracker.Allow(ctx, "src")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("breaker at threshold should short-circuit")
	}

	state, err := tracker.GetState(ctx, "src")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Failures != 3 || state.OpenedAt.IsZero() {
		t.Errorf("state = %+v, want 3 failures and an opened_at timestamp", state)
	}
}

func TestTracker_SuccessCloses(t *testing.T) {
	tracker := newTestTracker(t, Config{FailureThreshold: 2, Cooldown: time.Hour})
	ctx := context.Background()

	tracker.RecordFailure(ctx, "src")
	tracker.RecordFailure(ctx, "src")

	if allowed, _ := tracker.Allow(ctx, "src"); allowed {
		t.Fatal("breaker should be open")
	}

	if err := tracker.RecordSuccess(ctx, "src"); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}

	allowed, err := tracker.Allow(ctx, "src")
	if err != nil || !allowed {
		t.Errorf("after success: allowed=%v, err=%v, want allowed", allowed, err)
	}

	state, _ := tracker.GetState(ctx, "src")
	if state.Failures != 0 || !state.OpenedAt.IsZero() {
		t.Errorf("state = %+v, want fully reset", state)
	}
}

func TestTracker_ProbeAfterCooldown(t *testing.T) {
	tracker := newTestTracker(t, Config{FailureThreshold: 2, Cooldown: 50 * time.Millisecond})
	ctx := context.Background()

	tracker.RecordFailure(ctx, "src")
	tracker.RecordFailure(ctx, "src")

	if allowed, _ := tracker.Allow(ctx, "src"); allowed {
		t.Fatal("breaker should be open before cooldown")
	}

	time.Sleep(100 * time.Millisecond)

	// One probe goes through after cooldown.
	allowed, err := tracker.Allow(ctx, "src")
	if err != nil || !allowed {
		t.Fatalf("probe after cooldown: allowed=%v, err=%v", allowed, err)
	}

	// A probe failure reopens immediately; a success would close fully.
	if err := tracker.RecordFailure(ctx, "src"); err != nil {
		t.Fatalf("RecordFailure after probe: %v", err)
	}
	if allowed, _ := tracker.Allow(ctx, "src"); allowed {
		t.Error("failed probe should reopen the breaker")
	}
}

func TestTracker_SourcesIndependent(t *testing.T) {
	tracker := newTestTracker(t, Config{FailureThreshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	tracker.RecordFailure(ctx, "bad")

	if allowed, _ := tracker.Allow(ctx, "bad"); allowed {
		t.Error("bad source should be short-circuited")
	}
	if allowed, _ := tracker.Allow(ctx, "good"); !allowed {
		t.Error("good source must not share bad source's budget")
	}
}
