package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Releasing compares the stored token first so a replica whose lease
// already expired cannot delete a successor's lock.
var sweepUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	errSweepLockClient = errors.New("sweep lock requires a redis client")
	errSweepLockTTL    = errors.New("sweep lock ttl must be positive")
)

// sweepLock elects one replica to run the subscription expiry sweep.
// It is a single-key redis lease; losing it mid-sweep is tolerated
// because the sweep's row-level claims stay correct regardless.
type sweepLock struct {
	client *redis.Client
	key    string
}

func newSweepLock(client *redis.Client) *sweepLock {
	if client == nil {
		return nil
	}
	return &sweepLock{client: client, key: keySweepLock}
}

func (l *sweepLock) acquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errSweepLockClient
	}
	if ttl <= 0 {
		return "", false, errSweepLockTTL
	}

	token := uuid.NewString()
	held, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, held, nil
}

func (l *sweepLock) release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return sweepUnlockScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
