// Package webhook is the inbound edge of the payment pipeline: it
// verifies each delivery against its gateway adapter before anything
// touches the datastore.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cadenzalabs/cadenza/internal/payment/adapters"
	paymentdomain "github.com/cadenzalabs/cadenza/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	Adapters   *adapters.Registry
}

type Service struct {
	log        *zap.Logger
	paymentSvc paymentdomain.Service
	adapters   *adapters.Registry
}

func New(p Params) paymentdomain.WebhookService {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		adapters:   p.Adapters,
	}
}

func (s *Service) Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway == "" {
		return paymentdomain.ErrInvalidProvider
	}
	adapter, ok := s.adapters.Get(gateway)
	if !ok {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("gateway", gateway))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("webhook event ignored", zap.String("gateway", gateway))
			return nil
		}
		return err
	}

	return s.paymentSvc.ProcessEvent(ctx, event)
}
