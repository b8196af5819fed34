package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cadenzalabs/cadenza/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyStreamUser = "stream:url:user:%s"
	keyStreamAddr = "stream:url:addr:%s"
	keySweepLock  = "scheduler:sweep:lock"
)

// StreamLimiter throttles signed stream URL issuance per caller. A
// disabled limiter is nil and allows everything, matching deployments
// without redis.
type StreamLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *sweepLock

	userRate  float64
	userBurst int
	addrRate  float64
	addrBurst int
}

func NewStreamLimiter(cfg config.Config) (*StreamLimiter, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.StreamURLUserRate <= 0 || cfg.StreamURLUserBurst <= 0 {
		return nil, errors.New("stream url user rate limit must be positive")
	}
	if cfg.StreamURLAddrRate <= 0 || cfg.StreamURLAddrBurst <= 0 {
		return nil, errors.New("stream url addr rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &StreamLimiter{
		enabled:   true,
		bucket:    NewTokenBucket(client),
		locker:    newSweepLock(client),
		userRate:  cfg.StreamURLUserRate,
		userBurst: cfg.StreamURLUserBurst,
		addrRate:  cfg.StreamURLAddrRate,
		addrBurst: cfg.StreamURLAddrBurst,
	}, nil
}

func (l *StreamLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *StreamLimiter) AllowUser(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyStreamUser, strings.TrimSpace(userID)), l.userRate, l.userBurst)
}

func (l *StreamLimiter) AllowAddr(ctx context.Context, remoteAddr string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyStreamAddr, strings.TrimSpace(remoteAddr)), l.addrRate, l.addrBurst)
}

// TryLockSweep serializes the subscription expiry sweep across
// replicas. Without redis the sweep runs everywhere and the row-level
// claims keep it correct, just less efficient.
func (l *StreamLimiter) TryLockSweep(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.acquire(ctx, ttl)
}

func (l *StreamLimiter) ReleaseSweep(ctx context.Context, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.release(ctx, token)
}
