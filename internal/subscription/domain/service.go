package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
)

// ActivateInput starts or renews a subscription after a settled charge.
type ActivateInput struct {
	UserID                 snowflake.ID
	ArtistID               snowflake.ID
	Cycle                  Cycle
	Gateway                transactiondomain.Gateway
	ExternalSubscriptionID string
	TransactionID          *snowflake.ID
}

// Service is the subscription lifecycle surface.
type Service interface {
	// Activate creates the (user, artist) row, extends it when paid
	// time remains, or restarts it after expiry.
	Activate(ctx context.Context, input ActivateInput) (*Subscription, error)
	// Cancel turns off renewal; paid time keeps running.
	Cancel(ctx context.Context, userID, artistID snowflake.ID) (*Subscription, error)
	Get(ctx context.Context, userID, artistID snowflake.ID) (*Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID snowflake.ID) ([]Subscription, error)
	// HasAccess reports whether the user currently holds unexpired paid
	// time with the artist, cancelled or not.
	HasAccess(ctx context.Context, userID, artistID snowflake.ID) (bool, error)
	// ExpireLapsed flips rows whose paid time has run out to expired.
	// Returns the number of rows flipped.
	ExpireLapsed(ctx context.Context, limit int) (int64, error)
}

// Reader is the narrow surface entitlement checks depend on.
type Reader interface {
	HasAccess(ctx context.Context, userID, artistID snowflake.ID) (bool, error)
}
