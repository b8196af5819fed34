package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	subscriptionrepo "github.com/cadenzalabs/cadenza/internal/subscription/repository"
	subscriptionservice "github.com/cadenzalabs/cadenza/internal/subscription/service"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_scheduler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(
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
	).Error; err != nil {
		t.Fatalf("create subscriptions: %v", err)
	}
	return db
}

func insertSubscription(t *testing.T, db *gorm.DB, node *snowflake.Node, status string, validUntil time.Time) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := validUntil.AddDate(0, -1, 0)
	if err := db.Exec(
		`INSERT INTO subscriptions
		 (id, user_id, artist_id, cycle, started_at, valid_until, status, is_recurring, gateway, external_subscription_id, created_at, updated_at)
		 VALUES (?, ?, ?, '1m', ?, ?, ?, TRUE, 'stripe', ?, ?, ?)`,
		id, node.Generate(), node.Generate(), now, validUntil, status, fmt.Sprintf("sub_%d", id), now, now,
	).Error; err != nil {
		t.Fatalf("insert subscription: %v", err)
	}
	return id
}

func newScheduler(t *testing.T, db *gorm.DB, node *snowflake.Node, fake *clock.FakeClock) *Scheduler {
	t.Helper()
	svc := subscriptionservice.New(subscriptionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  subscriptionrepo.Provide(),
		Clock: fake,
	})
	sched, err := New(Params{
		Log:             zap.NewNop(),
		SubscriptionSvc: svc,
		Clock:           fake,
		Config:          Config{BatchSize: 2},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func statusOf(t *testing.T, db *gorm.DB, id snowflake.ID) string {
	t.Helper()
	var status string
	if err := db.Raw("SELECT status FROM subscriptions WHERE id = ?", id).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	return status
}

func TestSweepExpiresLapsedSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(90)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	sched := newScheduler(t, db, node, fake)

	lapsedActive := insertSubscription(t, db, node, "active", fake.Now().Add(-time.Hour))
	lapsedCancelled := insertSubscription(t, db, node, "cancelled", fake.Now().Add(-24*time.Hour))
	stillPaid := insertSubscription(t, db, node, "active", fake.Now().Add(48*time.Hour))

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if got := statusOf(t, db, lapsedActive); got != "expired" {
		t.Fatalf("lapsed active subscription not expired, got %s", got)
	}
	if got := statusOf(t, db, lapsedCancelled); got != "expired" {
		t.Fatalf("lapsed cancelled subscription not expired, got %s", got)
	}
	if got := statusOf(t, db, stillPaid); got != "active" {
		t.Fatalf("paid-up subscription touched by sweep, got %s", got)
	}
}

func TestSweepDrainsBeyondOneBatch(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(91)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	sched := newScheduler(t, db, node, fake)

	for i := 0; i < 5; i++ {
		insertSubscription(t, db, node, "active", fake.Now().Add(-time.Hour))
	}

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var remaining int64
	if err := db.Raw(
		"SELECT COUNT(1) FROM subscriptions WHERE status != 'expired'",
	).Scan(&remaining).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("sweep left %d lapsed rows behind batch size", remaining)
	}
}

func TestSweepBecomesExpiryVisibleToAccessChecks(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(92)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	svc := subscriptionservice.New(subscriptionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  subscriptionrepo.Provide(),
		Clock: fake,
	})
	sched, err := New(Params{
		Log:             zap.NewNop(),
		SubscriptionSvc: svc,
		Clock:           fake,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	userID := node.Generate()
	artistID := node.Generate()
	if _, err := svc.Activate(context.Background(), subscriptiondomain.ActivateInput{
		UserID:                 userID,
		ArtistID:               artistID,
		Cycle:                  subscriptiondomain.CycleMonthly,
		Gateway:                "stripe",
		ExternalSubscriptionID: "sub_sweep_1",
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	fake.Advance(40 * 24 * time.Hour)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	ok, err := svc.HasAccess(context.Background(), userID, artistID)
	if err != nil {
		t.Fatalf("has access: %v", err)
	}
	if ok {
		t.Fatal("expired subscription still grants access after sweep")
	}

	sub, err := svc.Get(context.Background(), userID, artistID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub.Status != subscriptiondomain.StatusExpired {
		t.Fatalf("expected expired status, got %s", sub.Status)
	}
}
