package service

import (
	"context"
	"encoding/json"
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	ledgerdomain "github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"github.com/cadenzalabs/cadenza/internal/observability/metrics"
	"github.com/cadenzalabs/cadenza/internal/payment/domain"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	Transactions  transactiondomain.Service
	Subscriptions subscriptiondomain.Service
	Ledger        ledgerdomain.Service
	Clock         clock.Clock
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	txns    transactiondomain.Service
	subs    subscriptiondomain.Service
	ledger  ledgerdomain.Service
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		txns:    p.Transactions,
		subs:    p.Subscriptions,
		ledger:  p.Ledger,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func creditSource(itemType transactiondomain.ItemType) ledgerdomain.Source {
	switch itemType {
	case transactiondomain.ItemTypeSong:
		return ledgerdomain.SourceSong
	case transactiondomain.ItemTypeAlbum:
		return ledgerdomain.SourceAlbum
	default:
		return ledgerdomain.SourceSubscription
	}
}

// ProcessEvent turns one verified gateway event into its side effects:
// the durable event row, the transaction, subscription activation, and
// the artist credit. Every step is individually idempotent, so a
// redelivered event replays safely no matter where the previous
// attempt stopped.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.PaymentEvent) error {
	if event == nil || event.UserID == 0 || event.GatewayEventID == "" {
		return domain.ErrInvalidEvent
	}

	payload := event.RawPayload
	if !json.Valid(payload) {
		raw, err := json.Marshal(map[string]string{"gateway_event_id": event.GatewayEventID})
		if err != nil {
			return err
		}
		payload = raw
	}

	now := s.clock.Now()
	record := &domain.EventRecord{
		ID:             s.genID.Generate(),
		Gateway:        string(event.Gateway),
		GatewayEventID: event.GatewayEventID,
		EventType:      event.EventType,
		UserID:         event.UserID,
		Payload:        datatypes.JSON(payload),
		ReceivedAt:     now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return err
	}
	if inserted {
		s.metrics.RecordPaymentEvent(ctx, string(event.Gateway), event.EventType)
	} else {
		existing, err := s.repo.FindEvent(ctx, s.db, record.Gateway, record.GatewayEventID)
		if err != nil {
			return err
		}
		if existing != nil && existing.ProcessedAt != nil {
			s.log.Debug("duplicate gateway event absorbed",
				zap.String("gateway", string(event.Gateway)),
				zap.String("gateway_event_id", event.GatewayEventID),
			)
			return nil
		}
		// The row landed on an earlier delivery that died before
		// finishing. Replay the remaining steps against that row.
		if existing != nil {
			record.ID = existing.ID
		}
		s.log.Info("replaying unfinished gateway event",
			zap.String("gateway", string(event.Gateway)),
			zap.String("gateway_event_id", event.GatewayEventID),
		)
	}

	status := transactiondomain.StatusPaid
	if event.EventType == domain.EventTypePaymentFailed {
		status = transactiondomain.StatusFailed
	}

	txn, _, err := s.txns.Record(ctx, transactiondomain.RecordInput{
		UserID:             event.UserID,
		ItemType:           event.ItemType,
		ItemID:             event.ItemID,
		ArtistID:           event.ArtistID,
		Gateway:            event.Gateway,
		GatewayReferenceID: event.GatewayReferenceID,
		Amount:             event.Amount,
		Currency:           event.Currency,
		Status:             status,
	})
	if err != nil {
		return err
	}

	if status == transactiondomain.StatusFailed {
		s.log.Info("payment failure recorded",
			zap.String("gateway", string(event.Gateway)),
			zap.Int64("transaction_id", txn.ID.Int64()),
		)
		return s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now())
	}

	if event.ItemType == transactiondomain.ItemTypeSubscription && event.ArtistID != nil {
		if _, err := s.subs.Activate(ctx, subscriptiondomain.ActivateInput{
			UserID:                 event.UserID,
			ArtistID:               *event.ArtistID,
			Cycle:                  event.Cycle,
			Gateway:                event.Gateway,
			ExternalSubscriptionID: event.ExternalSubscriptionID,
			TransactionID:          &txn.ID,
		}); err != nil {
			return err
		}
	}

	if event.ArtistID != nil && txn.ArtistShare > 0 {
		shareUSD := int64(math.Round(float64(txn.ArtistShare) / txn.ExchangeRate))
		if _, err := s.ledger.Credit(ctx, ledgerdomain.CreditInput{
			ArtistID:    *event.ArtistID,
			Source:      creditSource(event.ItemType),
			RefID:       txn.ID,
			Amount:      txn.ArtistShare,
			AmountUSD:   shareUSD,
			GrossAmount: txn.Amount,
			Currency:    txn.Currency,
		}); err != nil {
			return err
		}
	}

	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		return err
	}

	s.log.Info("gateway event processed",
		zap.String("gateway", string(event.Gateway)),
		zap.String("gateway_event_id", event.GatewayEventID),
		zap.String("item_type", string(event.ItemType)),
		zap.Int64("transaction_id", txn.ID.Int64()),
	)
	return nil
}
