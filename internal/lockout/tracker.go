package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable reports that the counter backend could not be reached.
// Callers treat it as "locked" on the login path: fail closed.
var ErrUnavailable = errors.New("lockout backend unavailable")

// Tracker counts consecutive failed login attempts per identity in
// Redis. INCR is the single authority for the count, so concurrent
// failures from multiple engine instances cannot slip past the
// threshold between a check and an increment.
type Tracker struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
	keyPrefix   string
}

// NewTracker builds a Tracker. maxAttempts is the count at which the
// identity locks; window is how long the lock lasts, measured from the
// most recent failure.
func NewTracker(client *redis.Client, maxAttempts int, window time.Duration, keyPrefix string) *Tracker {
	if keyPrefix == "" {
		keyPrefix = "tenantauth:lockout:"
	}
	return &Tracker{
		client:      client,
		maxAttempts: int64(maxAttempts),
		window:      window,
		keyPrefix:   keyPrefix,
	}
}

func (t *Tracker) key(identityID string) string {
	return t.keyPrefix + identityID
}

// RecordFailure atomically increments the failure count and refreshes
// the window so the lock expires relative to the last failure. It
// returns the post-increment count.
func (t *Tracker) RecordFailure(ctx context.Context, identityID string) (int64, error) {
	key := t.key(identityID)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
		return count, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return count, nil
}

// RecordSuccess resets the counter. A successful login before the
// threshold wipes the slate.
func (t *Tracker) RecordSuccess(ctx context.Context, identityID string) error {
	if err := t.client.Del(ctx, t.key(identityID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsLockedOut reports whether the identity has reached the threshold.
func (t *Tracker) IsLockedOut(ctx context.Context, identityID string) (bool, error) {
	count, err := t.FailureCount(ctx, identityID)
	if err != nil {
		return false, err
	}
	return count >= t.maxAttempts, nil
}

// FailureCount returns the current consecutive-failure count. A missing
// key reads as zero.
func (t *Tracker) FailureCount(ctx context.Context, identityID string) (int64, error) {
	count, err := t.client.Get(ctx, t.key(identityID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}
