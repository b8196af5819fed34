package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/pricing"
	"github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"github.com/cadenzalabs/cadenza/internal/transaction/repository"
	"github.com/cadenzalabs/cadenza/internal/transaction/service"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_txn_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
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
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, nodeID int64) (domain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	split, err := pricing.NewSplitHolder(config.Config{PlatformFeeBps: 2000}, zap.NewNop())
	if err != nil {
		t.Fatalf("new split holder: %v", err)
	}
	svc := service.New(service.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Split:     split,
		Converter: pricing.NewStaticConverter(),
		Clock:     clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	return svc, node
}

func TestRecordComputesSplitAtCreation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db, 30)

	userID := node.Generate()
	songID := node.Generate()
	artistID := node.Generate()

	txn, created, err := svc.Record(ctx, domain.RecordInput{
		UserID:             userID,
		ItemType:           domain.ItemTypeSong,
		ItemID:             songID,
		ArtistID:           &artistID,
		Gateway:            domain.GatewayStripe,
		GatewayReferenceID: "pi_100",
		Amount:             1000,
		Currency:           "usd",
		Status:             domain.StatusPaid,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}
	if txn.PlatformFee != 200 || txn.ArtistShare != 800 {
		t.Fatalf("expected 20%% split of 1000, got fee=%d share=%d", txn.PlatformFee, txn.ArtistShare)
	}
	if txn.Currency != "USD" {
		t.Fatalf("expected normalized currency, got %q", txn.Currency)
	}
	if txn.AmountUSD != 1000 {
		t.Fatalf("expected USD amount 1000, got %d", txn.AmountUSD)
	}
	if txn.InvoiceNumber == nil || *txn.InvoiceNumber == "" {
		t.Fatal("expected invoice number assigned")
	}
}

func TestRecordIsIdempotentPerGatewayReference(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db, 31)

	input := domain.RecordInput{
		UserID:             node.Generate(),
		ItemType:           domain.ItemTypeAlbum,
		ItemID:             node.Generate(),
		Gateway:            domain.GatewayRazorpay,
		GatewayReferenceID: "pay_42",
		Amount:             2500,
		Currency:           "INR",
		Status:             domain.StatusPaid,
	}

	first, created, err := svc.Record(ctx, input)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to create")
	}

	second, created, err := svc.Record(ctx, input)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if created {
		t.Fatal("expected duplicate to be absorbed")
	}
	if second.ID != first.ID {
		t.Fatalf("expected stored row back, got %d vs %d", second.ID, first.ID)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM transactions").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
}

func TestRecordRejectsUnknownGateway(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db, 32)

	_, _, err := svc.Record(ctx, domain.RecordInput{
		UserID:             node.Generate(),
		ItemType:           domain.ItemTypeSong,
		ItemID:             node.Generate(),
		Gateway:            "square",
		GatewayReferenceID: "x",
		Amount:             100,
		Currency:           "USD",
	})
	if err != domain.ErrInvalidGateway {
		t.Fatalf("expected ErrInvalidGateway, got %v", err)
	}
}

func TestHasPaidPurchaseIgnoresPendingAndFailed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db, 33)

	userID := node.Generate()
	songID := node.Generate()

	if _, _, err := svc.Record(ctx, domain.RecordInput{
		UserID:             userID,
		ItemType:           domain.ItemTypeSong,
		ItemID:             songID,
		Gateway:            domain.GatewayStripe,
		GatewayReferenceID: "pi_pending",
		Amount:             500,
		Currency:           "USD",
		Status:             domain.StatusPending,
	}); err != nil {
		t.Fatalf("record pending: %v", err)
	}

	paid, err := svc.HasPaidPurchase(ctx, userID, domain.ItemTypeSong, songID)
	if err != nil {
		t.Fatalf("has paid: %v", err)
	}
	if paid {
		t.Fatal("pending charge must not count as paid")
	}

	if _, _, err := svc.Record(ctx, domain.RecordInput{
		UserID:             userID,
		ItemType:           domain.ItemTypeSong,
		ItemID:             songID,
		Gateway:            domain.GatewayStripe,
		GatewayReferenceID: "pi_settled",
		Amount:             500,
		Currency:           "USD",
		Status:             domain.StatusPaid,
	}); err != nil {
		t.Fatalf("record paid: %v", err)
	}

	paid, err = svc.HasPaidPurchase(ctx, userID, domain.ItemTypeSong, songID)
	if err != nil {
		t.Fatalf("has paid: %v", err)
	}
	if !paid {
		t.Fatal("settled charge must count as paid")
	}
}

func TestMarkFailedOnlyMovesPending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db, 34)

	txn, _, err := svc.Record(ctx, domain.RecordInput{
		UserID:             node.Generate(),
		ItemType:           domain.ItemTypeSong,
		ItemID:             node.Generate(),
		Gateway:            domain.GatewayPaypal,
		GatewayReferenceID: "cap_1",
		Amount:             900,
		Currency:           "EUR",
		Status:             domain.StatusPaid,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := svc.MarkFailed(ctx, txn.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, err := svc.Get(ctx, txn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPaid {
		t.Fatalf("paid transaction must stay paid, got %s", got.Status)
	}
}
