package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
)

// CreditInput records revenue for an artist from one settled charge.
type CreditInput struct {
	ArtistID    snowflake.ID
	Source      Source
	RefID       snowflake.ID
	Amount      int64
	AmountUSD   int64
	GrossAmount int64
	Currency    string
}

// RequestPayoutInput is an artist's withdrawal request.
type RequestPayoutInput struct {
	ArtistID          snowflake.ID
	Amount            int64
	Currency          string
	PayoutDestination string
}

// MarkPaidInput settles a requested payout.
type MarkPaidInput struct {
	PayoutID    snowflake.ID
	ProcessedBy snowflake.ID
	AdminNote   *string
}

// Service is the artist revenue surface.
type Service interface {
	// Credit appends a credit entry and grows the balance. Replays of
	// the same (source ref) are absorbed and return created=false.
	Credit(ctx context.Context, input CreditInput) (created bool, err error)
	GetBalance(ctx context.Context, artistID snowflake.ID) (*Balance, error)
	ListEntries(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]Entry, pagination.Meta, error)

	RequestPayout(ctx context.Context, input RequestPayoutInput) (*Payout, error)
	MarkPayoutPaid(ctx context.Context, input MarkPaidInput) (*Payout, error)
	GetPayout(ctx context.Context, id snowflake.ID) (*Payout, error)
	ListArtistPayouts(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]Payout, pagination.Meta, error)
	ListPayoutQueue(ctx context.Context, page pagination.Page) ([]Payout, pagination.Meta, error)
}
