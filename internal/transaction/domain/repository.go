package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes the row unless one already exists for the same
	// (gateway, gateway_reference_id). Returns false when absorbed.
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	FindByGatewayRef(ctx context.Context, db *gorm.DB, gateway Gateway, referenceID string) (*Transaction, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	HasPaid(ctx context.Context, db *gorm.DB, userID snowflake.ID, itemType ItemType, itemID snowflake.ID) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, offset, limit int) ([]Transaction, int64, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) (bool, error)
}
