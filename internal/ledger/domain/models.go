// Package domain holds the artist revenue ledger: an append-only entry
// stream, a derived balance row per artist, and payout requests.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeCredit EntryType = "credit"
	EntryTypeDebit  EntryType = "debit"
)

// Source identifies what produced an entry.
type Source string

const (
	SourceSong         Source = "song"
	SourceAlbum        Source = "album"
	SourceSubscription Source = "subscription"
	SourcePayout       Source = "payout"
)

// Entry is one immutable ledger line. The (type, ref_id) pair is
// unique: one transaction yields one credit, one payout one debit.
type Entry struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ArtistID    snowflake.ID `gorm:"not null;index" json:"artist_id"`
	Type        EntryType    `gorm:"type:text;not null" json:"type"`
	Source      Source       `gorm:"type:text;not null" json:"source"`
	RefID       snowflake.ID `gorm:"not null" json:"ref_id"`
	Amount      int64        `gorm:"not null" json:"amount"`
	AmountUSD   int64        `gorm:"not null;default:0" json:"amount_usd"`
	GrossAmount int64        `gorm:"not null;default:0" json:"gross_amount"`
	Currency    string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "artist_ledger_entries" }

// Balance is the derived money position of one artist. The invariant
// available_balance = total_earned - total_paid_out always holds.
type Balance struct {
	ArtistID         snowflake.ID `gorm:"primaryKey" json:"artist_id"`
	TotalEarned      int64        `gorm:"not null;default:0" json:"total_earned"`
	AvailableBalance int64        `gorm:"not null;default:0" json:"available_balance"`
	TotalPaidOut     int64        `gorm:"not null;default:0" json:"total_paid_out"`
	Currency         string       `gorm:"type:text;not null;default:USD" json:"currency"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "artist_balances" }

// PayoutStatus tracks a payout request through settlement.
type PayoutStatus string

const (
	PayoutStatusRequested PayoutStatus = "requested"
	PayoutStatusPaid      PayoutStatus = "paid"
)

// Payout is a withdrawal request. Admission only checks the available
// balance; the money leaves the balance when an admin marks the payout
// paid.
type Payout struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	ArtistID          snowflake.ID  `gorm:"not null;index" json:"artist_id"`
	Amount            int64         `gorm:"not null" json:"amount"`
	Currency          string        `gorm:"type:text;not null" json:"currency"`
	PayoutDestination string        `gorm:"type:text;not null" json:"payout_destination"`
	Status            PayoutStatus  `gorm:"type:text;not null;default:requested" json:"status"`
	AdminNote         *string       `gorm:"type:text" json:"admin_note,omitempty"`
	ProcessedBy       *snowflake.ID `gorm:"" json:"processed_by,omitempty"`
	ProcessedAt       *time.Time    `gorm:"" json:"processed_at,omitempty"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "artist_payouts" }

var (
	ErrInvalidArtist       = errors.New("invalid_artist")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidSource       = errors.New("invalid_source")
	ErrBelowMinimumPayout  = errors.New("below_minimum_payout")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrMissingDestination  = errors.New("missing_payout_destination")
	ErrPayoutNotFound      = errors.New("payout_not_found")
	ErrPayoutAlreadyPaid   = errors.New("payout_already_paid")
)
