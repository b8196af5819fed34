package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByUserArtist(ctx context.Context, db *gorm.DB, userID, artistID snowflake.ID) (*Subscription, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*Subscription, error)
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Subscription, error)
	// ClaimExpired flips active/cancelled rows whose valid_until has
	// passed to expired, claiming each row so concurrent sweepers never
	// touch the same one. Returns the number of rows flipped.
	ClaimExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error)
}
