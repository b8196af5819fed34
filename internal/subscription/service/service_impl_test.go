package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/subscription/domain"
	"github.com/cadenzalabs/cadenza/internal/subscription/repository"
	"github.com/cadenzalabs/cadenza/internal/subscription/service"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_sub_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
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
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, nodeID int64, fake *clock.FakeClock) (domain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
	})
	return svc, node
}

func activateInput(userID, artistID snowflake.ID, cycle domain.Cycle, externalID string) domain.ActivateInput {
	return domain.ActivateInput{
		UserID:                 userID,
		ArtistID:               artistID,
		Cycle:                  cycle,
		Gateway:                transactiondomain.GatewayStripe,
		ExternalSubscriptionID: externalID,
	}
}

func TestActivateStartsNewSubscription(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	svc, node := newService(t, db, 40, fake)

	userID := node.Generate()
	artistID := node.Generate()

	sub, err := svc.Activate(ctx, activateInput(userID, artistID, domain.CycleMonthly, "sub_1"))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sub.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}
	want := start.AddDate(0, 1, 0)
	if !sub.ValidUntil.Equal(want) {
		t.Fatalf("expected valid_until %v, got %v", want, sub.ValidUntil)
	}
}

func TestRenewalChainsFromCurrentExpiry(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	svc, node := newService(t, db, 41, fake)

	userID := node.Generate()
	artistID := node.Generate()

	first, err := svc.Activate(ctx, activateInput(userID, artistID, domain.CycleMonthly, "sub_2"))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	// Renew five days early; the new period must start where the old
	// one ends, not at the renewal timestamp.
	fake.Advance(25 * 24 * time.Hour)
	renewed, err := svc.Activate(ctx, activateInput(userID, artistID, domain.CycleMonthly, "sub_2"))
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	want := first.ValidUntil.AddDate(0, 1, 0)
	if !renewed.ValidUntil.Equal(want) {
		t.Fatalf("expected valid_until %v, got %v", want, renewed.ValidUntil)
	}
	if renewed.ID != first.ID {
		t.Fatal("renewal must extend the existing row")
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM subscriptions").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row per (user, artist), got %d", count)
	}
}

func TestActivateAfterLapseRestartsFromNow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	svc, node := newService(t, db, 42, fake)

	userID := node.Generate()
	artistID := node.Generate()

	if _, err := svc.Activate(ctx, activateInput(userID, artistID, domain.CycleMonthly, "sub_3")); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// Let the subscription lapse by well over a cycle.
	fake.Advance(90 * 24 * time.Hour)
	now := fake.Now()

	renewed, err := svc.Activate(ctx, activateInput(userID, artistID, domain.CycleMonthly, "sub_3"))
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	want := now.AddDate(0, 1, 0)
	if !renewed.ValidUntil.Equal(want) {
		t.Fatalf("expected restart from now, want %v got %v", want, renewed.ValidUntil)
	}
	if !renewed.StartedAt.Equal(now) {
		t.Fatalf("expected started_at reset, got %v", renewed.StartedAt)
	}
}

func TestCancelKeepsPaidTimeRunning(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	svc, node := newService(t, db, 43, fake)

	userID := node.Generate()
	artistID := node.Generate()

	sub, err := svc.Activate(ctx, activateInput(userID, artistID, domain.CycleQuarterly, "sub_4"))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, userID, artistID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if !cancelled.ValidUntil.Equal(sub.ValidUntil) {
		t.Fatal("cancel must not shorten paid time")
	}

	ok, err := svc.HasAccess(ctx, userID, artistID)
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if !ok {
		t.Fatal("cancelled subscription with paid time left must keep access")
	}

	// Access ends once the paid period runs out.
	fake.Advance(120 * 24 * time.Hour)
	ok, err = svc.HasAccess(ctx, userID, artistID)
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if ok {
		t.Fatal("expired subscription must not keep access")
	}

	if _, err := svc.Cancel(ctx, userID, artistID); err != domain.ErrAlreadyCancelled {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestActivateRejectsInvalidCycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fake := clock.NewFakeClock(time.Now().UTC())
	svc, node := newService(t, db, 44, fake)

	_, err := svc.Activate(ctx, activateInput(node.Generate(), node.Generate(), "2w", "sub_5"))
	if err != domain.ErrInvalidCycle {
		t.Fatalf("expected ErrInvalidCycle, got %v", err)
	}
}

func TestActivateRejectsReusedExternalID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fake := clock.NewFakeClock(time.Now().UTC())
	svc, node := newService(t, db, 45, fake)

	userID := node.Generate()

	if _, err := svc.Activate(ctx, activateInput(userID, node.Generate(), domain.CycleMonthly, "sub_6")); err != nil {
		t.Fatalf("activate: %v", err)
	}
	_, err := svc.Activate(ctx, activateInput(userID, node.Generate(), domain.CycleMonthly, "sub_6"))
	if err != domain.ErrExternalIDTaken {
		t.Fatalf("expected ErrExternalIDTaken, got %v", err)
	}
}
