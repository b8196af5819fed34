package identity

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/identity/domain"
	"github.com/cadenzalabs/cadenza/internal/identity/password"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BootstrapParams struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

// Bootstrap seeds the first admin account on an empty install. The
// password hash is stored for the edge auth service, which shares the
// users table; nothing in this process checks passwords.
func Bootstrap(p BootstrapParams) error {
	if p.Cfg.AdminBootstrapEmail == "" || p.Cfg.AdminBootstrapPassword == "" {
		return nil
	}
	log := p.Log.Named("identity.bootstrap")
	ctx := context.Background()

	var count int64
	if err := p.DB.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM users WHERE email = ?`,
		p.Cfg.AdminBootstrapEmail,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := password.Hash(p.Cfg.AdminBootstrapPassword)
	if err != nil {
		return err
	}

	now := p.Clock.Now()
	user := &domain.User{
		ID:           p.GenID.Generate(),
		Name:         "Admin",
		Email:        p.Cfg.AdminBootstrapEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		RoleVersion:  1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Repo.Insert(ctx, p.DB, user); err != nil {
		return err
	}

	log.Info("admin account seeded", zap.String("email", user.Email))
	return nil
}
