package payment

import (
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/payment/adapters"
	"github.com/cadenzalabs/cadenza/internal/payment/adapters/paypal"
	"github.com/cadenzalabs/cadenza/internal/payment/adapters/razorpay"
	"github.com/cadenzalabs/cadenza/internal/payment/adapters/stripe"
	"github.com/cadenzalabs/cadenza/internal/payment/domain"
	"github.com/cadenzalabs/cadenza/internal/payment/repository"
	"github.com/cadenzalabs/cadenza/internal/payment/service"
	"github.com/cadenzalabs/cadenza/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// newRegistry wires an adapter per gateway that has a secret
// configured. Deliveries for unconfigured gateways are rejected at the
// edge instead of failing signature checks downstream.
func newRegistry(cfg config.Config, log *zap.Logger) *adapters.Registry {
	var list []domain.Adapter

	if adapter, err := stripe.NewAdapter(cfg.StripeWebhookSecret); err == nil {
		list = append(list, adapter)
	} else {
		log.Warn("stripe webhooks disabled", zap.Error(err))
	}
	if adapter, err := razorpay.NewAdapter(cfg.RazorpayWebhookSecret); err == nil {
		list = append(list, adapter)
	} else {
		log.Warn("razorpay webhooks disabled", zap.Error(err))
	}
	if adapter, err := paypal.NewAdapter(cfg.PaypalWebhookSecret); err == nil {
		list = append(list, adapter)
	} else {
		log.Warn("paypal webhooks disabled", zap.Error(err))
	}

	return adapters.NewRegistry(list...)
}

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(newRegistry),
	fx.Provide(service.New),
	fx.Provide(webhook.New),
)
