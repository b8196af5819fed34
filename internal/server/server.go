package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadenzalabs/cadenza/internal/authorization"
	"github.com/cadenzalabs/cadenza/internal/catalog"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/entitlement"
	entitlementdomain "github.com/cadenzalabs/cadenza/internal/entitlement/domain"
	"github.com/cadenzalabs/cadenza/internal/identity"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
	"github.com/cadenzalabs/cadenza/internal/ledger"
	ledgerdomain "github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"github.com/cadenzalabs/cadenza/internal/ledger/statement"
	"github.com/cadenzalabs/cadenza/internal/media"
	"github.com/cadenzalabs/cadenza/internal/observability"
	obslogger "github.com/cadenzalabs/cadenza/internal/observability/logger"
	obsmetrics "github.com/cadenzalabs/cadenza/internal/observability/metrics"
	obstracing "github.com/cadenzalabs/cadenza/internal/observability/tracing"
	"github.com/cadenzalabs/cadenza/internal/payment"
	paymentdomain "github.com/cadenzalabs/cadenza/internal/payment/domain"
	"github.com/cadenzalabs/cadenza/internal/pricing"
	"github.com/cadenzalabs/cadenza/internal/ratelimit"
	"github.com/cadenzalabs/cadenza/internal/scheduler"
	"github.com/cadenzalabs/cadenza/internal/subscription"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	"github.com/cadenzalabs/cadenza/internal/transaction"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	catalog.Module,
	entitlement.Module,
	identity.Module,
	ledger.Module,
	media.Module,
	payment.Module,
	pricing.Module,
	ratelimit.Module,
	scheduler.Module,
	subscription.Module,
	transaction.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	identityRepo    identitydomain.Repository
	authzSvc        authorization.Service
	catalogSvc      catalogdomain.Service
	entitlementSvc  entitlementdomain.Service
	subscriptionSvc subscriptiondomain.Service
	transactionSvc  transactiondomain.Service
	ledgerSvc       ledgerdomain.Service
	statementSvc    *statement.Service
	webhookSvc      paymentdomain.WebhookService
	signer          *media.Signer
	streamLimiter   *ratelimit.StreamLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	IdentityRepo    identitydomain.Repository
	AuthzSvc        authorization.Service
	CatalogSvc      catalogdomain.Service
	EntitlementSvc  entitlementdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	TransactionSvc  transactiondomain.Service
	LedgerSvc       ledgerdomain.Service
	StatementSvc    *statement.Service
	WebhookSvc      paymentdomain.WebhookService
	Signer          *media.Signer
	StreamLimiter   *ratelimit.StreamLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		identityRepo:    p.IdentityRepo,
		authzSvc:        p.AuthzSvc,
		catalogSvc:      p.CatalogSvc,
		entitlementSvc:  p.EntitlementSvc,
		subscriptionSvc: p.SubscriptionSvc,
		transactionSvc:  p.TransactionSvc,
		ledgerSvc:       p.LedgerSvc,
		statementSvc:    p.StatementSvc,
		webhookSvc:      p.WebhookSvc,
		signer:          p.Signer,
		streamLimiter:   p.StreamLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerListenerRoutes()
	svc.registerArtistRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api", s.IdentityMiddleware())

	api.GET("/songs/:id", s.GetSong)
	api.GET("/albums/:id", s.GetAlbum)
	api.GET("/albums/:id/songs", s.ListAlbumSongs)
	api.GET("/artists/:id/songs", s.ListArtistSongs)
	api.GET("/artists/:id/albums", s.ListArtistAlbums)

	// Free songs stream anonymously; the entitlement check decides.
	api.GET("/songs/:id/stream", s.StreamRateLimit(), s.StreamSong)
	api.GET("/albums/:id/stream", s.StreamRateLimit(), s.StreamAlbum)

	s.engine.POST("/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerListenerRoutes() {
	me := s.engine.Group("/api/me", s.IdentityMiddleware(), s.AuthRequired())

	me.GET("/purchases", s.ListPurchases)
	me.GET("/subscriptions", s.ListSubscriptions)
	me.GET("/subscriptions/:artistId", s.GetSubscription)
	me.POST("/subscriptions/:artistId/cancel",
		s.RequireCapability(authorization.ObjectSubscription, authorization.ActionSubscriptionCancel),
		s.CancelSubscription,
	)
}

func (s *Server) registerArtistRoutes() {
	artist := s.engine.Group("/api/artist", s.IdentityMiddleware(), s.AuthRequired())

	artist.POST("/songs",
		s.RequireCapability(authorization.ObjectSong, authorization.ActionSongCreate), s.CreateSong)
	artist.PATCH("/songs/:id",
		s.RequireCapability(authorization.ObjectSong, authorization.ActionSongUpdate), s.UpdateSong)
	artist.DELETE("/songs/:id",
		s.RequireCapability(authorization.ObjectSong, authorization.ActionSongDelete), s.DeleteSong)
	artist.POST("/albums",
		s.RequireCapability(authorization.ObjectAlbum, authorization.ActionAlbumCreate), s.CreateAlbum)
	artist.PATCH("/albums/:id",
		s.RequireCapability(authorization.ObjectAlbum, authorization.ActionAlbumUpdate), s.UpdateAlbum)
	artist.DELETE("/albums/:id",
		s.RequireCapability(authorization.ObjectAlbum, authorization.ActionAlbumDelete), s.DeleteAlbum)

	artist.GET("/dashboard",
		s.RequireCapability(authorization.ObjectDashboard, authorization.ActionDashboardView), s.ArtistDashboard)
	artist.GET("/balance",
		s.RequireCapability(authorization.ObjectBalance, authorization.ActionBalanceView), s.GetBalance)
	artist.GET("/ledger",
		s.RequireCapability(authorization.ObjectBalance, authorization.ActionLedgerView), s.ListLedgerEntries)

	artist.POST("/payouts",
		s.RequireCapability(authorization.ObjectPayout, authorization.ActionPayoutRequest), s.RequestPayout)
	artist.GET("/payouts",
		s.RequireCapability(authorization.ObjectPayout, authorization.ActionPayoutRequest), s.ListOwnPayouts)
	artist.GET("/payouts/:id/statement",
		s.RequireCapability(authorization.ObjectPayout, authorization.ActionPayoutStatement), s.PayoutStatement)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.IdentityMiddleware(), s.AuthRequired())

	admin.GET("/payouts",
		s.RequireCapability(authorization.ObjectPayout, authorization.ActionPayoutQueueView), s.ListPayoutQueue)
	admin.POST("/payouts/:id/mark-paid",
		s.RequireCapability(authorization.ObjectPayout, authorization.ActionPayoutMarkPaid), s.MarkPayoutPaid)
}
