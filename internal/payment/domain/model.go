// Package domain defines the canonical payment event model shared by
// the gateway adapters and the webhook pipeline.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRecord is the durable copy of every accepted gateway event,
// keyed uniquely by (gateway, gateway_event_id) so redeliveries are
// absorbed before any side effect runs.
type EventRecord struct {
	ID             snowflake.ID   `json:"id" gorm:"primaryKey"`
	Gateway        string         `json:"gateway" gorm:"type:text;not null"`
	GatewayEventID string         `json:"gateway_event_id" gorm:"type:text;not null"`
	EventType      string         `json:"event_type" gorm:"type:text;not null"`
	UserID         snowflake.ID   `json:"user_id" gorm:"not null"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt     time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt    *time.Time     `json:"processed_at"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// PaymentEvent is one verified, parsed gateway notification. Adapters
// normalize their gateway's payload into this shape; everything past
// the adapter boundary is gateway-agnostic.
type PaymentEvent struct {
	Gateway            transactiondomain.Gateway
	GatewayEventID     string
	GatewayReferenceID string
	EventType          string
	UserID             snowflake.ID
	ItemType           transactiondomain.ItemType
	ItemID             snowflake.ID
	ArtistID           *snowflake.ID
	Amount             int64
	Currency           string
	// Subscription purchases carry the billing cycle and the gateway's
	// own subscription id.
	Cycle                  subscriptiondomain.Cycle
	ExternalSubscriptionID string
	OccurredAt             time.Time
	RawPayload             []byte
}

// Adapter verifies and parses one gateway's webhook deliveries.
type Adapter interface {
	Gateway() transactiondomain.Gateway
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// Service processes verified events into transactions, subscriptions,
// and artist credits.
type Service interface {
	ProcessEvent(ctx context.Context, event *PaymentEvent) error
}

// WebhookService is the inbound HTTP-facing surface.
type WebhookService interface {
	Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, gateway, gatewayEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidMetadata  = errors.New("invalid_event_metadata")
	// ErrEventIgnored marks event types the platform has no interest
	// in; the gateway still gets a 2xx so it stops retrying.
	ErrEventIgnored = errors.New("event_ignored")
)
