package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectSong         = "song"
	ObjectAlbum        = "album"
	ObjectSubscription = "subscription"
	ObjectPurchase     = "purchase"
	ObjectBalance      = "balance"
	ObjectPayout       = "payout"
	ObjectDashboard    = "artist_dashboard"
)

const (
	ActionSongCreate = "song.create"
	ActionSongUpdate = "song.update"
	ActionSongDelete = "song.delete"

	ActionAlbumCreate = "album.create"
	ActionAlbumUpdate = "album.update"
	ActionAlbumDelete = "album.delete"

	ActionSubscriptionView   = "subscription.view"
	ActionSubscriptionCancel = "subscription.cancel"

	ActionPurchaseView = "purchase.view"

	ActionBalanceView = "balance.view"
	ActionLedgerView  = "ledger.view"

	ActionPayoutRequest   = "payout.request"
	ActionPayoutQueueView = "payout.queue_view"
	ActionPayoutMarkPaid  = "payout.mark_paid"
	ActionPayoutStatement = "payout.statement"

	ActionDashboardView = "artist_dashboard.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := s.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("capability denied",
			zap.String("subject", subject),
			zap.String("role", roleName),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, error) {
	if actor == "system" {
		return actor, "role:system", nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", ErrInvalidActor
		}
		role, err := s.roleForUser(ctx, userID)
		if err != nil {
			return "", "", err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), nil
	}
	return "", "", ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM users
		 WHERE id = ?
		 LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

// ensureGrouping keeps the casbin grouping in sync with the users
// table. A role change replaces the old grouping on the next check.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Listener permissions
		{"role:user", ObjectSubscription, ActionSubscriptionView},
		{"role:user", ObjectSubscription, ActionSubscriptionCancel},
		{"role:user", ObjectPurchase, ActionPurchaseView},

		// Artist permissions
		{"role:artist", ObjectSong, ActionSongCreate},
		{"role:artist", ObjectSong, ActionSongUpdate},
		{"role:artist", ObjectSong, ActionSongDelete},
		{"role:artist", ObjectAlbum, ActionAlbumCreate},
		{"role:artist", ObjectAlbum, ActionAlbumUpdate},
		{"role:artist", ObjectAlbum, ActionAlbumDelete},
		{"role:artist", ObjectBalance, ActionBalanceView},
		{"role:artist", ObjectBalance, ActionLedgerView},
		{"role:artist", ObjectPayout, ActionPayoutRequest},
		{"role:artist", ObjectPayout, ActionPayoutStatement},
		{"role:artist", ObjectDashboard, ActionDashboardView},

		// Admin permissions
		{"role:admin", ObjectSong, ActionSongDelete},
		{"role:admin", ObjectAlbum, ActionAlbumDelete},
		{"role:admin", ObjectBalance, ActionBalanceView},
		{"role:admin", ObjectBalance, ActionLedgerView},
		{"role:admin", ObjectPayout, ActionPayoutQueueView},
		{"role:admin", ObjectPayout, ActionPayoutMarkPaid},
		{"role:admin", ObjectPayout, ActionPayoutStatement},
		{"role:admin", ObjectDashboard, ActionDashboardView},

		// System permissions (schedulers and internal jobs)
		{"role:system", ObjectSubscription, ActionSubscriptionView},
		{"role:system", ObjectPayout, ActionPayoutQueueView},
	}

	groupings := [][]string{
		// Artists keep their listener capabilities.
		{"role:artist", "role:user"},
		{"role:admin", "role:user"},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping[0], grouping[1]); err != nil {
			return err
		}
	}
	return nil
}
