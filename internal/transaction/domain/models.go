// Package domain holds the purchase ledger: one row per gateway charge,
// append-only, keyed uniquely by the gateway's own reference.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Gateway identifies the external payment processor.
type Gateway string

const (
	GatewayStripe   Gateway = "stripe"
	GatewayRazorpay Gateway = "razorpay"
	GatewayPaypal   Gateway = "paypal"
)

// ValidGateway reports whether g is a supported processor.
func ValidGateway(g Gateway) bool {
	switch g {
	case GatewayStripe, GatewayRazorpay, GatewayPaypal:
		return true
	default:
		return false
	}
}

// ItemType is what the money bought.
type ItemType string

const (
	ItemTypeSong         ItemType = "song"
	ItemTypeAlbum        ItemType = "album"
	ItemTypeSubscription ItemType = "subscription"
)

// Status is the settlement state of a charge.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Transaction is one charge against a user. Rows are never updated
// after reaching a terminal status; corrections get their own rows.
type Transaction struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID             snowflake.ID   `gorm:"not null;index" json:"user_id"`
	ItemType           ItemType       `gorm:"type:text;not null" json:"item_type"`
	ItemID             snowflake.ID   `gorm:"not null" json:"item_id"`
	ArtistID           *snowflake.ID  `gorm:"" json:"artist_id,omitempty"`
	Gateway            Gateway        `gorm:"type:text;not null" json:"gateway"`
	GatewayReferenceID string         `gorm:"type:text;not null" json:"gateway_reference_id"`
	Amount             int64          `gorm:"not null" json:"amount"`
	Currency           string         `gorm:"type:text;not null" json:"currency"`
	AmountUSD          int64          `gorm:"not null;default:0" json:"amount_usd"`
	ExchangeRate       float64        `gorm:"not null;default:1" json:"exchange_rate"`
	PlatformFee        int64          `gorm:"not null;default:0" json:"platform_fee"`
	ArtistShare        int64          `gorm:"not null;default:0" json:"artist_share"`
	Status             Status         `gorm:"type:text;not null;default:pending" json:"status"`
	InvoiceNumber      *string        `gorm:"type:text" json:"invoice_number,omitempty"`
	Metadata           datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

var (
	ErrInvalidGateway   = errors.New("invalid_gateway")
	ErrInvalidItemType  = errors.New("invalid_item_type")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrMissingReference = errors.New("missing_gateway_reference")
	ErrInvalidUser      = errors.New("invalid_user")
)
