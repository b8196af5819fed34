// Package paypal adapts PayPal webhook deliveries to the canonical
// payment event model. Verification uses the shared transmission
// secret; certificate-chain verification is delegated to the edge
// proxy that terminates PayPal traffic.
package paypal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
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
		return nil, errors.New("paypal webhook secret is empty")
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Gateway() transactiondomain.Gateway {
	return transactiondomain.GatewayPaypal
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("Paypal-Transmission-Sig"))
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

type paypalEvent struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID     string `json:"id"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		// CustomID carries the platform metadata as JSON; PayPal has
		// no free-form metadata map on captures.
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType string
	switch strings.TrimSpace(event.EventType) {
	case "PAYMENT.CAPTURE.COMPLETED":
		eventType = paymentdomain.EventTypePaymentSucceeded
	case "PAYMENT.CAPTURE.DENIED":
		eventType = paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	resource := event.Resource
	if strings.TrimSpace(resource.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount, err := parseMinorUnits(resource.Amount.Value)
	if err != nil || amount <= 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(resource.CustomID), &values); err != nil {
		return nil, paymentdomain.ErrInvalidMetadata
	}
	meta, err := paymentdomain.ParseMetadata(values)
	if err != nil {
		return nil, err
	}

	occurredAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, event.CreateTime); err == nil {
		occurredAt = t.UTC()
	}

	return &paymentdomain.PaymentEvent{
		Gateway:                transactiondomain.GatewayPaypal,
		GatewayEventID:         event.ID,
		GatewayReferenceID:     resource.ID,
		EventType:              eventType,
		UserID:                 meta.UserID,
		ItemType:               meta.ItemType,
		ItemID:                 meta.ItemID,
		ArtistID:               meta.ArtistID,
		Amount:                 amount,
		Currency:               strings.ToUpper(strings.TrimSpace(resource.Amount.CurrencyCode)),
		Cycle:                  meta.Cycle,
		ExternalSubscriptionID: strings.TrimSpace(values["subscription_id"]),
		OccurredAt:             occurredAt,
		RawPayload:             payload,
	}, nil
}

// parseMinorUnits converts PayPal's decimal string ("12.34") to minor
// units.
func parseMinorUnits(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, paymentdomain.ErrInvalidEvent
	}

	parts := strings.SplitN(value, ".", 2)
	major, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}

	var minor int64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
	}
	return major*100 + minor, nil
}
