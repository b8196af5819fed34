package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEntry writes the ledger line unless one already exists for
	// the same (type, ref_id). Returns false when absorbed.
	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) (bool, error)
	ListEntries(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]Entry, int64, error)

	FindBalance(ctx context.Context, db *gorm.DB, artistID snowflake.ID) (*Balance, error)
	// ApplyCredit upserts the balance row and adds amount to both
	// total_earned and available_balance.
	ApplyCredit(ctx context.Context, db *gorm.DB, artistID snowflake.ID, amount int64, currency string, now time.Time) error
	// ApplyDebit moves amount out of available_balance into
	// total_paid_out. Returns false when the balance cannot cover it.
	ApplyDebit(ctx context.Context, db *gorm.DB, artistID snowflake.ID, amount int64, now time.Time) (bool, error)

	InsertPayout(ctx context.Context, db *gorm.DB, payout *Payout) error
	FindPayoutByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	// MarkPayoutPaid flips requested to paid. Returns false when the
	// payout was already paid.
	MarkPayoutPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, processedBy snowflake.ID, note *string, now time.Time) (bool, error)
	ListPayoutsByArtist(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]Payout, int64, error)
	ListPayoutsByStatus(ctx context.Context, db *gorm.DB, status PayoutStatus, offset, limit int) ([]Payout, int64, error)
}
