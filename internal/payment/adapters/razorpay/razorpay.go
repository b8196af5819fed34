// Package razorpay adapts Razorpay webhook deliveries to the canonical
// payment event model.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/cadenzalabs/cadenza/internal/payment/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
)

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, errors.New("razorpay webhook secret is empty")
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Gateway() transactiondomain.Gateway {
	return transactiondomain.GatewayRazorpay
}

// Verify checks the X-Razorpay-Signature header, an HMAC-SHA256 of the
// raw body.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("X-Razorpay-Signature"))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

type razorpayEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID       string            `json:"id"`
				Amount   int64             `json:"amount"`
				Currency string            `json:"currency"`
				Notes    map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event razorpayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var eventType string
	switch strings.TrimSpace(event.Event) {
	case "payment.captured":
		eventType = paymentdomain.EventTypePaymentSucceeded
	case "payment.failed":
		eventType = paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	entity := event.Payload.Payment.Entity
	if strings.TrimSpace(entity.ID) == "" || entity.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	meta, err := paymentdomain.ParseMetadata(entity.Notes)
	if err != nil {
		return nil, err
	}

	occurredAt := time.Now().UTC()
	if event.CreatedAt > 0 {
		occurredAt = time.Unix(event.CreatedAt, 0).UTC()
	}

	return &paymentdomain.PaymentEvent{
		Gateway:                transactiondomain.GatewayRazorpay,
		GatewayEventID:         entity.ID + ":" + strings.TrimSpace(event.Event),
		GatewayReferenceID:     entity.ID,
		EventType:              eventType,
		UserID:                 meta.UserID,
		ItemType:               meta.ItemType,
		ItemID:                 meta.ItemID,
		ArtistID:               meta.ArtistID,
		Amount:                 entity.Amount,
		Currency:               strings.ToUpper(strings.TrimSpace(entity.Currency)),
		Cycle:                  meta.Cycle,
		ExternalSubscriptionID: strings.TrimSpace(entity.Notes["subscription_id"]),
		OccurredAt:             occurredAt,
		RawPayload:             payload,
	}, nil
}
