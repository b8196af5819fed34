package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/subscription/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"github.com/cadenzalabs/cadenza/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func validateActivateInput(input domain.ActivateInput) error {
	if input.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if input.ArtistID == 0 {
		return domain.ErrInvalidArtist
	}
	if input.Cycle.Months() == 0 {
		return domain.ErrInvalidCycle
	}
	if !transactiondomain.ValidGateway(input.Gateway) {
		return transactiondomain.ErrInvalidGateway
	}
	if strings.TrimSpace(input.ExternalSubscriptionID) == "" {
		return domain.ErrMissingExternalID
	}
	return nil
}

func (s *Service) Activate(ctx context.Context, input domain.ActivateInput) (*domain.Subscription, error) {
	if err := validateActivateInput(input); err != nil {
		return nil, err
	}

	externalID := strings.TrimSpace(input.ExternalSubscriptionID)
	now := s.clock.Now()

	var out *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByUserArtist(ctx, tx, input.UserID, input.ArtistID)
		if err != nil {
			return err
		}

		// The gateway's subscription id may only ever belong to one
		// (user, artist) pair.
		byExternal, err := s.repo.FindByExternalID(ctx, tx, externalID)
		if err != nil {
			return err
		}
		if byExternal != nil && (existing == nil || byExternal.ID != existing.ID) {
			return domain.ErrExternalIDTaken
		}

		months := input.Cycle.Months()

		if existing == nil {
			sub := &domain.Subscription{
				ID:                     s.genID.Generate(),
				UserID:                 input.UserID,
				ArtistID:               input.ArtistID,
				Cycle:                  input.Cycle,
				StartedAt:              now,
				ValidUntil:             now.AddDate(0, months, 0),
				Status:                 domain.StatusActive,
				IsRecurring:            true,
				Gateway:                input.Gateway,
				ExternalSubscriptionID: externalID,
				TransactionID:          input.TransactionID,
				CreatedAt:              now,
				UpdatedAt:              now,
			}
			if err := s.repo.Insert(ctx, tx, sub); err != nil {
				// Concurrent activations can slip past the read above and
				// hit the unique index on external_subscription_id.
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrExternalIDTaken
				}
				return err
			}
			out = sub
			s.log.Info("subscription started",
				zap.Int64("user_id", input.UserID.Int64()),
				zap.Int64("artist_id", input.ArtistID.Int64()),
				zap.String("cycle", string(input.Cycle)),
			)
			return nil
		}

		// A renewal with paid time left chains from the current expiry
		// so the subscriber never loses days. After a lapse the clock
		// restarts from now.
		if existing.ValidUntil.After(now) {
			existing.ValidUntil = existing.ValidUntil.AddDate(0, months, 0)
		} else {
			existing.StartedAt = now
			existing.ValidUntil = now.AddDate(0, months, 0)
		}
		existing.Cycle = input.Cycle
		existing.Status = domain.StatusActive
		existing.IsRecurring = true
		existing.Gateway = input.Gateway
		existing.ExternalSubscriptionID = externalID
		existing.TransactionID = input.TransactionID
		existing.CancelledAt = nil
		existing.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, existing); err != nil {
			return err
		}
		out = existing
		s.log.Info("subscription renewed",
			zap.Int64("user_id", input.UserID.Int64()),
			zap.Int64("artist_id", input.ArtistID.Int64()),
			zap.Time("valid_until", existing.ValidUntil),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, userID, artistID snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByUserArtist(ctx, s.db, userID, artistID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	if sub.Status == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	sub.Status = domain.StatusCancelled
	sub.IsRecurring = false
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription cancelled",
		zap.Int64("user_id", userID.Int64()),
		zap.Int64("artist_id", artistID.Int64()),
		zap.Time("valid_until", sub.ValidUntil),
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, userID, artistID snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByUserArtist(ctx, s.db, userID, artistID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) ListUserSubscriptions(ctx context.Context, userID snowflake.ID) ([]domain.Subscription, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) ExpireLapsed(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	expired, err := s.repo.ClaimExpired(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("subscriptions expired", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *Service) HasAccess(ctx context.Context, userID, artistID snowflake.ID) (bool, error) {
	sub, err := s.repo.FindByUserArtist(ctx, s.db, userID, artistID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.GrantsAccessAt(s.clock.Now()), nil
}
