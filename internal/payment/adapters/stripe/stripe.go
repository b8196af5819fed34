// Package stripe adapts Stripe webhook deliveries to the canonical
// payment event model.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
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
		return nil, errors.New("stripe webhook secret is empty")
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Gateway() transactiondomain.Gateway {
	return transactiondomain.GatewayStripe
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType string
	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		eventType = paymentdomain.EventTypePaymentSucceeded
	case "payment_intent.payment_failed":
		eventType = paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	obj := event.Data.Object
	if strings.TrimSpace(obj.ID) == "" || obj.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	meta, err := paymentdomain.ParseMetadata(obj.Metadata)
	if err != nil {
		return nil, err
	}

	occurredAt := time.Now().UTC()
	if event.Created > 0 {
		occurredAt = time.Unix(event.Created, 0).UTC()
	}

	return &paymentdomain.PaymentEvent{
		Gateway:                transactiondomain.GatewayStripe,
		GatewayEventID:         event.ID,
		GatewayReferenceID:     obj.ID,
		EventType:              eventType,
		UserID:                 meta.UserID,
		ItemType:               meta.ItemType,
		ItemID:                 meta.ItemID,
		ArtistID:               meta.ArtistID,
		Amount:                 obj.Amount,
		Currency:               strings.ToUpper(strings.TrimSpace(obj.Currency)),
		Cycle:                  meta.Cycle,
		ExternalSubscriptionID: strings.TrimSpace(obj.Metadata["subscription_id"]),
		OccurredAt:             occurredAt,
		RawPayload:             payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			timestamp = pair[1]
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	if _, err := strconv.ParseInt(timestamp, 10, 64); err != nil {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
