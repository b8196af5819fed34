// Package domain defines pricing collaborators: display currency
// conversion and the platform/artist revenue split.
package domain

import (
	"errors"

	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
)

// Converter returns display prices in supported currencies for a base
// price. Conversion happens at item creation/update time, never per read.
type Converter interface {
	Convert(base catalogdomain.Price) ([]catalogdomain.Price, error)
	USDRate(currency string) (float64, error)
}

// Split is the computed fee breakdown for one payment.
type Split struct {
	PlatformFee int64
	ArtistShare int64
}

// RevenueConfig drives the platform fee. Hot-reloadable from a mounted
// config file.
type RevenueConfig struct {
	PlatformFeeBps  int   `mapstructure:"platform_fee_bps"`
	MinPayoutAmount int64 `mapstructure:"min_payout_amount"`
}

var (
	ErrUnsupportedCurrency = errors.New("unsupported_currency")
	ErrInvalidFeeConfig    = errors.New("invalid_fee_config")
)
