package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
)

// RecordInput describes a settled or pending charge reported by a
// payment gateway.
type RecordInput struct {
	UserID             snowflake.ID
	ItemType           ItemType
	ItemID             snowflake.ID
	ArtistID           *snowflake.ID
	Gateway            Gateway
	GatewayReferenceID string
	Amount             int64
	Currency           string
	Status             Status
	Metadata           map[string]any
}

// Service is the purchase ledger surface.
type Service interface {
	// Record persists a charge once. Replays of the same gateway
	// reference return the stored row with created=false.
	Record(ctx context.Context, input RecordInput) (txn *Transaction, created bool, err error)
	Get(ctx context.Context, id snowflake.ID) (*Transaction, error)
	HasPaidPurchase(ctx context.Context, userID snowflake.ID, itemType ItemType, itemID snowflake.ID) (bool, error)
	ListUserPurchases(ctx context.Context, userID snowflake.ID, page pagination.Page) ([]Transaction, pagination.Meta, error)
	MarkFailed(ctx context.Context, id snowflake.ID) error
}

// Reader is the narrow read surface entitlement checks depend on.
type Reader interface {
	HasPaidPurchase(ctx context.Context, userID snowflake.ID, itemType ItemType, itemID snowflake.ID) (bool, error)
}
