// Package scheduler runs the background jobs that keep subscription
// state honest without waiting for a read to notice.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/ratelimit"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler dependencies missing")

type Params struct {
	fx.In

	Log             *zap.Logger
	SubscriptionSvc subscriptiondomain.Service
	Clock           clock.Clock
	Limiter         *ratelimit.StreamLimiter `optional:"true"`
	Config          Config                   `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	subs    subscriptiondomain.Service
	limiter *ratelimit.StreamLimiter
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.SubscriptionSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler"),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		subs:    p.SubscriptionSvc,
		limiter: p.Limiter,
	}, nil
}

// RunOnce performs a single expiry sweep. The redis lock keeps
// multiple replicas from sweeping at the same time; when the lock is
// unavailable the row-level claims still make concurrent sweeps safe.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	token, acquired, err := s.limiter.TryLockSweep(ctx, s.cfg.SweepLockTTL)
	if err != nil {
		s.log.Warn("sweep lock unavailable, proceeding unlocked", zap.Error(err))
	} else if !acquired {
		return nil
	} else {
		defer func() {
			if err := s.limiter.ReleaseSweep(ctx, token); err != nil {
				s.log.Warn("sweep lock release failed", zap.Error(err))
			}
		}()
	}

	return s.ExpireSubscriptionsJob(ctx)
}

// ExpireSubscriptionsJob drains lapsed subscriptions in batches until
// a pass finds nothing left.
func (s *Scheduler) ExpireSubscriptionsJob(ctx context.Context) error {
	start := s.clock.Now()
	var total int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		expired, err := s.subs.ExpireLapsed(ctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		total += expired
		if expired < int64(s.cfg.BatchSize) {
			break
		}
	}

	if total > 0 {
		s.log.Info("expiry sweep finished",
			zap.Int64("expired", total),
			zap.Duration("took", time.Since(start)),
		)
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
