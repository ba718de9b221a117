package lockout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T, maxAttempts int, window time.Duration) (*Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewTracker(client, maxAttempts, window, ""), mr
}

func TestLockAfterThreshold(t *testing.T) {
	tr, _ := newTestTracker(t, 5, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tr.RecordFailure(ctx, "idn_1"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		locked, err := tr.IsLockedOut(ctx, "idn_1")
		if err != nil {
			t.Fatalf("IsLockedOut: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures", i+1)
		}
	}

	count, err := tr.RecordFailure(ctx, "idn_1")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}

	locked, err := tr.IsLockedOut(ctx, "idn_1")
	if err != nil {
		t.Fatalf("IsLockedOut: %v", err)
	}
	if !locked {
		t.Fatal("not locked after reaching threshold")
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	tr, _ := newTestTracker(t, 5, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tr.RecordFailure(ctx, "idn_1"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	if err := tr.RecordSuccess(ctx, "idn_1"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	count, err := tr.FailureCount(ctx, "idn_1")
	if err != nil {
		t.Fatalf("FailureCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after success = %d, want 0", count)
	}
}

func TestWindowRunsFromLastFailure(t *testing.T) {
	tr, mr := newTestTracker(t, 5, 10*time.Minute)
	ctx := context.Background()

	if _, err := tr.RecordFailure(ctx, "idn_1"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	mr.FastForward(8 * time.Minute)
	if _, err := tr.RecordFailure(ctx, "idn_1"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	// Nine minutes after the second failure the first would have
	// expired; the refreshed window keeps both counted.
	mr.FastForward(9 * time.Minute)
	count, err := tr.FailureCount(ctx, "idn_1")
	if err != nil {
		t.Fatalf("FailureCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	mr.FastForward(2 * time.Minute)
	count, err = tr.FailureCount(ctx, "idn_1")
	if err != nil {
		t.Fatalf("FailureCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after window = %d, want 0", count)
	}
}

func TestConcurrentFailuresCannotSkipThreshold(t *testing.T) {
	tr, _ := newTestTracker(t, 5, 15*time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.RecordFailure(ctx, "idn_1")
		}()
	}
	wg.Wait()

	count, err := tr.FailureCount(ctx, "idn_1")
	if err != nil {
		t.Fatalf("FailureCount: %v", err)
	}
	if count != 16 {
		t.Fatalf("count = %d, want 16", count)
	}

	locked, err := tr.IsLockedOut(ctx, "idn_1")
	if err != nil {
		t.Fatalf("IsLockedOut: %v", err)
	}
	if !locked {
		t.Fatal("not locked after concurrent failures past threshold")
	}
}

func TestIdentitiesAreIndependent(t *testing.T) {
	tr, _ := newTestTracker(t, 2, 15*time.Minute)
	ctx := context.Background()

	_, _ = tr.RecordFailure(ctx, "idn_1")
	_, _ = tr.RecordFailure(ctx, "idn_1")

	locked, err := tr.IsLockedOut(ctx, "idn_2")
	if err != nil {
		t.Fatalf("IsLockedOut: %v", err)
	}
	if locked {
		t.Fatal("unrelated identity locked")
	}
}
