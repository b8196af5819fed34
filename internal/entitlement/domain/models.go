// Package domain defines the access decision model. Every stream or
// download request reduces to one AccessRule evaluated against the
// caller's identity and payment evidence.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
)

// RuleKind discriminates the closed set of access rules.
type RuleKind string

const (
	RuleFree         RuleKind = "free"
	RuleSubscription RuleKind = "subscription"
	RulePurchaseOnly RuleKind = "purchase-only"
)

// AccessRule is the monetization policy of one item, resolved to the
// evidence needed to satisfy it. Subscription rules point at the
// artist to be subscribed to; purchase rules point at the exact item
// whose paid transaction unlocks access.
type AccessRule struct {
	Kind     RuleKind
	ArtistID snowflake.ID
	RefKind  transactiondomain.ItemType
	RefID    snowflake.ID
}

// Reason explains a decision; denials are expected outcomes, not errors.
type Reason string

const (
	ReasonAdmin           Reason = "admin"
	ReasonFree            Reason = "free"
	ReasonOwner           Reason = "owner"
	ReasonSubscription    Reason = "subscription"
	ReasonPurchase        Reason = "purchase"
	ReasonNotFound        Reason = "not_found"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNoEntitlement   Reason = "no_entitlement"
	ReasonMalformed       Reason = "malformed"
)

// Decision is the outcome of one entitlement check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

func Allow(reason Reason) Decision { return Decision{Allowed: true, Reason: reason} }
func Deny(reason Reason) Decision  { return Decision{Allowed: false, Reason: reason} }

// CatalogSource is the catalog read surface the evaluator needs.
type CatalogSource interface {
	GetSong(ctx context.Context, id snowflake.ID) (*catalogdomain.Song, error)
	GetAlbum(ctx context.Context, id snowflake.ID) (*catalogdomain.Album, error)
}
