package regthrottle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable reports that the throttle backend could not be
// reached. Registration fails closed on it.
var ErrUnavailable = errors.New("registration throttle backend unavailable")

// Throttle limits registration attempts with fixed windows keyed by
// normalized email and by client IP. Either limit tripping blocks the
// attempt.
type Throttle struct {
	client      *redis.Client
	maxPerEmail int64
	maxPerIP    int64
	window      time.Duration
	keyPrefix   string
}

func NewThrottle(client *redis.Client, maxPerEmail, maxPerIP int, window time.Duration, keyPrefix string) *Throttle {
	if keyPrefix == "" {
		keyPrefix = "tenantauth:regthrottle:"
	}
	return &Throttle{
		client:      client,
		maxPerEmail: int64(maxPerEmail),
		maxPerIP:    int64(maxPerIP),
		window:      window,
		keyPrefix:   keyPrefix,
	}
}

// Allow consumes one attempt for the email/IP pair and reports whether
// it is within both limits. An empty IP skips the IP dimension.
func (t *Throttle) Allow(ctx context.Context, email, ip string) (bool, error) {
	ok, err := t.consume(ctx, "email:"+strings.ToLower(strings.TrimSpace(email)), t.maxPerEmail)
	if err != nil || !ok {
		return false, err
	}

	if ip == "" {
		return true, nil
	}
	return t.consume(ctx, "ip:"+ip, t.maxPerIP)
}

func (t *Throttle) consume(ctx context.Context, suffix string, max int64) (bool, error) {
	key := t.keyPrefix + suffix

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count <= max, nil
}
