package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserArtist(ctx context.Context, db *gorm.DB, userID, artistID snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ? AND artist_id = ?", userID, artistID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).
		Where("external_subscription_id = ?", externalID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("valid_until DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error) {
	// Row locks keep concurrent sweepers off the same rows on servers
	// that support them; SQLite serializes writes anyway.
	sub := `SELECT id FROM subscriptions
		 WHERE status IN (?, ?) AND valid_until <= ?
		 ORDER BY valid_until ASC
		 LIMIT ?`
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		sub += " FOR UPDATE SKIP LOCKED"
	}

	res := db.WithContext(ctx).Exec(
		fmt.Sprintf(
			`UPDATE subscriptions
			 SET status = ?, updated_at = ?
			 WHERE id IN (%s)`,
			sub,
		),
		domain.StatusExpired,
		now,
		domain.StatusActive,
		domain.StatusCancelled,
		now,
		limit,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
