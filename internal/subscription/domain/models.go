// Package domain holds artist subscriptions. Each (user, artist) pair
// owns at most one row; renewals extend that row rather than stacking
// new ones.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
)

// Cycle is the billing period length.
type Cycle string

const (
	CycleMonthly    Cycle = "1m"
	CycleQuarterly  Cycle = "3m"
	CycleHalfYearly Cycle = "6m"
	CycleYearly     Cycle = "12m"
)

// Months returns the cycle length, or 0 for an unknown cycle.
func (c Cycle) Months() int {
	switch c {
	case CycleMonthly:
		return 1
	case CycleQuarterly:
		return 3
	case CycleHalfYearly:
		return 6
	case CycleYearly:
		return 12
	default:
		return 0
	}
}

// Status is the lifecycle state of a subscription row.
type Status string

const (
	// StatusActive means auto-renewal is on.
	StatusActive Status = "active"
	// StatusCancelled means renewal is off but paid time may remain.
	StatusCancelled Status = "cancelled"
	// StatusExpired means valid_until has passed.
	StatusExpired Status = "expired"
)

// Subscription grants a user access to one artist's subscription
// catalog until ValidUntil.
type Subscription struct {
	ID                     snowflake.ID              `gorm:"primaryKey" json:"id"`
	UserID                 snowflake.ID              `gorm:"not null" json:"user_id"`
	ArtistID               snowflake.ID              `gorm:"not null" json:"artist_id"`
	Cycle                  Cycle                     `gorm:"type:text;not null" json:"cycle"`
	StartedAt              time.Time                 `gorm:"not null" json:"started_at"`
	ValidUntil             time.Time                 `gorm:"not null" json:"valid_until"`
	Status                 Status                    `gorm:"type:text;not null;default:active" json:"status"`
	IsRecurring            bool                      `gorm:"not null;default:true" json:"is_recurring"`
	Gateway                transactiondomain.Gateway `gorm:"type:text;not null" json:"gateway"`
	ExternalSubscriptionID string                    `gorm:"type:text;not null" json:"external_subscription_id"`
	TransactionID          *snowflake.ID             `gorm:"" json:"transaction_id,omitempty"`
	CancelledAt            *time.Time                `gorm:"" json:"cancelled_at,omitempty"`
	CreatedAt              time.Time                 `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time                 `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// GrantsAccessAt reports whether the subscription still grants catalog
// access at t. A cancelled subscription keeps access until ValidUntil.
func (s Subscription) GrantsAccessAt(t time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusCancelled {
		return false
	}
	return s.ValidUntil.After(t)
}

var (
	ErrInvalidCycle         = errors.New("invalid_cycle")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidArtist        = errors.New("invalid_artist")
	ErrMissingExternalID    = errors.New("missing_external_subscription_id")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrExternalIDTaken      = errors.New("external_subscription_id_taken")
	ErrAlreadyCancelled     = errors.New("subscription_already_cancelled")
)
