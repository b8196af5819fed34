package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/config"
	ledgerrepo "github.com/cadenzalabs/cadenza/internal/ledger/repository"
	ledgerservice "github.com/cadenzalabs/cadenza/internal/ledger/service"
	"github.com/cadenzalabs/cadenza/internal/payment/adapters"
	"github.com/cadenzalabs/cadenza/internal/payment/adapters/stripe"
	paymentdomain "github.com/cadenzalabs/cadenza/internal/payment/domain"
	paymentrepo "github.com/cadenzalabs/cadenza/internal/payment/repository"
	paymentservice "github.com/cadenzalabs/cadenza/internal/payment/service"
	paymentwebhook "github.com/cadenzalabs/cadenza/internal/payment/webhook"
	"github.com/cadenzalabs/cadenza/internal/pricing"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	subscriptionrepo "github.com/cadenzalabs/cadenza/internal/subscription/repository"
	subscriptionservice "github.com/cadenzalabs/cadenza/internal/subscription/service"
	transactionrepo "github.com/cadenzalabs/cadenza/internal/transaction/repository"
	transactionservice "github.com/cadenzalabs/cadenza/internal/transaction/service"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_payment_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE payment_events (
			id BIGINT PRIMARY KEY,
			gateway TEXT NOT NULL,
			gateway_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			payload TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_payment_events_gateway_event ON payment_events(gateway, gateway_event_id)`,
		`CREATE TABLE transactions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			item_type TEXT NOT NULL,
			item_id BIGINT NOT NULL,
			artist_id BIGINT,
			gateway TEXT NOT NULL,
			gateway_reference_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			amount_usd BIGINT NOT NULL DEFAULT 0,
			exchange_rate REAL NOT NULL DEFAULT 1,
			platform_fee BIGINT NOT NULL DEFAULT 0,
			artist_share BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			invoice_number TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_transactions_gateway_ref ON transactions(gateway, gateway_reference_id)`,
		`CREATE TABLE subscriptions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			artist_id BIGINT NOT NULL,
			cycle TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			valid_until TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			is_recurring BOOLEAN NOT NULL DEFAULT TRUE,
			gateway TEXT NOT NULL,
			external_subscription_id TEXT NOT NULL,
			transaction_id BIGINT,
			cancelled_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_subscriptions_user_artist ON subscriptions(user_id, artist_id)`,
		`CREATE UNIQUE INDEX ux_subscriptions_external_id ON subscriptions(external_subscription_id)`,
		`CREATE TABLE artist_ledger_entries (
			id BIGINT PRIMARY KEY,
			artist_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			ref_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			amount_usd BIGINT NOT NULL DEFAULT 0,
			gross_amount BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_artist_ledger_type_ref ON artist_ledger_entries(type, ref_id)`,
		`CREATE TABLE artist_balances (
			artist_id BIGINT PRIMARY KEY,
			total_earned BIGINT NOT NULL DEFAULT 0,
			available_balance BIGINT NOT NULL DEFAULT 0,
			total_paid_out BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'USD',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

const stripeSecret = "whsec_test"

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	webhook paymentdomain.WebhookService
	subs    subscriptiondomain.Service
}

func newFixture(t *testing.T, nodeID int64) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))

	split, err := pricing.NewSplitHolder(config.Config{PlatformFeeBps: 2000}, zap.NewNop())
	if err != nil {
		t.Fatalf("new split holder: %v", err)
	}

	txnSvc := transactionservice.New(transactionservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      transactionrepo.Provide(),
		Split:     split,
		Converter: pricing.NewStaticConverter(),
		Clock:     fake,
	})
	subSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  subscriptionrepo.Provide(),
		Clock: fake,
	})
	ledgerSvc := ledgerservice.New(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  ledgerrepo.Provide(),
		Split: split,
		Clock: fake,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          paymentrepo.Provide(),
		Transactions:  txnSvc,
		Subscriptions: subSvc,
		Ledger:        ledgerSvc,
		Clock:         fake,
	})

	adapter, err := stripe.NewAdapter(stripeSecret)
	if err != nil {
		t.Fatalf("new stripe adapter: %v", err)
	}
	webhookSvc := paymentwebhook.New(paymentwebhook.Params{
		Log:        zap.NewNop(),
		PaymentSvc: paymentSvc,
		Adapters:   adapters.NewRegistry(adapter),
	})

	return &fixture{db: db, node: node, clock: fake, webhook: webhookSvc, subs: subSvc}
}

func signStripe(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeHeaders(payload []byte, ts int64) http.Header {
	h := http.Header{}
	h.Set("Stripe-Signature", signStripe(stripeSecret, payload, ts))
	return h
}

func assertCount(t *testing.T, db *gorm.DB, query string, want int64, args ...any) {
	t.Helper()
	var got int64
	if err := db.Raw(query, args...).Scan(&got).Error; err != nil {
		t.Fatalf("count query: %v", err)
	}
	if got != want {
		t.Fatalf("%s: want %d, got %d", query, want, got)
	}
}

func TestSongPurchaseWebhookCreditsArtist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 80)

	userID := f.node.Generate()
	songID := f.node.Generate()
	artistID := f.node.Generate()
	ts := f.clock.Now().Unix()

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"payment_intent.succeeded","created":%d,"data":{"object":{"id":"pi_1","amount":1000,"currency":"usd","metadata":{"user_id":"%d","item_type":"song","item_id":"%d","artist_id":"%d"}}}}`,
		ts, userID.Int64(), songID.Int64(), artistID.Int64(),
	))

	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM transactions WHERE status = 'paid'", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM artist_ledger_entries WHERE type = 'credit'", 1)

	var available int64
	if err := f.db.Raw(
		"SELECT available_balance FROM artist_balances WHERE artist_id = ?", artistID,
	).Scan(&available).Error; err != nil {
		t.Fatalf("balance: %v", err)
	}
	if available != 800 {
		t.Fatalf("expected artist share 800 of 1000, got %d", available)
	}
}

func TestWebhookRedeliveryIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 81)

	userID := f.node.Generate()
	songID := f.node.Generate()
	artistID := f.node.Generate()
	ts := f.clock.Now().Unix()

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_2","type":"payment_intent.succeeded","created":%d,"data":{"object":{"id":"pi_2","amount":1000,"currency":"usd","metadata":{"user_id":"%d","item_type":"song","item_id":"%d","artist_id":"%d"}}}}`,
		ts, userID.Int64(), songID.Int64(), artistID.Int64(),
	))

	for i := 0; i < 3; i++ {
		if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM transactions", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM artist_ledger_entries", 1)

	var earned int64
	if err := f.db.Raw(
		"SELECT total_earned FROM artist_balances WHERE artist_id = ?", artistID,
	).Scan(&earned).Error; err != nil {
		t.Fatalf("balance: %v", err)
	}
	if earned != 800 {
		t.Fatalf("redelivery double-credited: total_earned=%d", earned)
	}
}

func TestSubscriptionWebhookActivatesAndCredits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 82)

	userID := f.node.Generate()
	artistID := f.node.Generate()
	ts := f.clock.Now().Unix()

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_3","type":"payment_intent.succeeded","created":%d,"data":{"object":{"id":"pi_3","amount":500,"currency":"usd","metadata":{"user_id":"%d","item_type":"subscription","item_id":"%d","artist_id":"%d","cycle":"1m","subscription_id":"sub_ext_1"}}}}`,
		ts, userID.Int64(), artistID.Int64(), artistID.Int64(),
	))

	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	sub, err := f.subs.Get(ctx, userID, artistID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected active subscription, got %s", sub.Status)
	}
	want := f.clock.Now().AddDate(0, 1, 0)
	if !sub.ValidUntil.Equal(want) {
		t.Fatalf("expected valid_until %v, got %v", want, sub.ValidUntil)
	}

	assertCount(t, f.db, "SELECT COUNT(1) FROM artist_ledger_entries WHERE source = 'subscription'", 1)
}

func TestFailedPaymentRecordsNoCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 83)

	userID := f.node.Generate()
	songID := f.node.Generate()
	artistID := f.node.Generate()
	ts := f.clock.Now().Unix()

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_4","type":"payment_intent.payment_failed","created":%d,"data":{"object":{"id":"pi_4","amount":1000,"currency":"usd","metadata":{"user_id":"%d","item_type":"song","item_id":"%d","artist_id":"%d"}}}}`,
		ts, userID.Int64(), songID.Int64(), artistID.Int64(),
	))

	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	assertCount(t, f.db, "SELECT COUNT(1) FROM transactions WHERE status = 'failed'", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM artist_ledger_entries", 0)
	assertCount(t, f.db, "SELECT COUNT(1) FROM subscriptions", 0)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 84)

	payload := []byte(`{"id":"evt_5","type":"payment_intent.succeeded","data":{"object":{}}}`)
	h := http.Header{}
	h.Set("Stripe-Signature", "t=123,v1=deadbeef")

	err := f.webhook.Ingest(ctx, "stripe", payload, h)
	if err != paymentdomain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 0)
}

func TestWebhookIgnoresUnknownEventTypes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 85)
	ts := f.clock.Now().Unix()

	payload := []byte(`{"id":"evt_6","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
		t.Fatalf("expected ignored event to succeed, got %v", err)
	}
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 0)
}

func TestWebhookRetryFinishesInterruptedDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 86)

	userID := f.node.Generate()
	artistID := f.node.Generate()
	ts := f.clock.Now().Unix()

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_7","type":"payment_intent.succeeded","created":%d,"data":{"object":{"id":"pi_7","amount":500,"currency":"usd","metadata":{"user_id":"%d","item_type":"subscription","item_id":"%d","artist_id":"%d","cycle":"1m","subscription_id":"sub_ext_7"}}}}`,
		ts, userID.Int64(), artistID.Int64(), artistID.Int64(),
	))

	// Take the subscriptions table offline so the first delivery dies
	// after the event row and transaction have landed.
	if err := f.db.Exec(`ALTER TABLE subscriptions RENAME TO subscriptions_offline`).Error; err != nil {
		t.Fatalf("rename table: %v", err)
	}
	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err == nil {
		t.Fatal("expected first delivery to fail mid-processing")
	}
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 0)

	if err := f.db.Exec(`ALTER TABLE subscriptions_offline RENAME TO subscriptions`).Error; err != nil {
		t.Fatalf("restore table: %v", err)
	}

	// The gateway retries the identical payload. The stored event is
	// still unprocessed, so the remaining steps must replay.
	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
		t.Fatalf("retry ingest: %v", err)
	}

	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM transactions WHERE status = 'paid'", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM subscriptions", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM artist_ledger_entries WHERE type = 'credit'", 1)

	// A third delivery after completion is absorbed outright.
	if err := f.webhook.Ingest(ctx, "stripe", payload, stripeHeaders(payload, ts)); err != nil {
		t.Fatalf("post-completion ingest: %v", err)
	}
	assertCount(t, f.db, "SELECT COUNT(1) FROM transactions", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM artist_ledger_entries", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM subscriptions", 1)
}
