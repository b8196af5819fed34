package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/pricing"
	pricingdomain "github.com/cadenzalabs/cadenza/internal/pricing/domain"
	"github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Split     *pricing.SplitHolder
	Converter pricingdomain.Converter
	Clock     clock.Clock
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	split     *pricing.SplitHolder
	converter pricingdomain.Converter
	clock     clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("transaction.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		split:     p.Split,
		converter: p.Converter,
		clock:     p.Clock,
	}
}

func validateRecordInput(input domain.RecordInput) error {
	if input.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if !domain.ValidGateway(input.Gateway) {
		return domain.ErrInvalidGateway
	}
	switch input.ItemType {
	case domain.ItemTypeSong, domain.ItemTypeAlbum, domain.ItemTypeSubscription:
	default:
		return domain.ErrInvalidItemType
	}
	if input.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if strings.TrimSpace(input.GatewayReferenceID) == "" {
		return domain.ErrMissingReference
	}
	return nil
}

func (s *Service) Record(ctx context.Context, input domain.RecordInput) (*domain.Transaction, bool, error) {
	if err := validateRecordInput(input); err != nil {
		return nil, false, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	rate, err := s.converter.USDRate(currency)
	if err != nil {
		return nil, false, err
	}
	amountUSD := int64(math.Round(float64(input.Amount) / rate))

	// The fee split is computed once, at recording time, so a later fee
	// change never rewrites settled history.
	split := s.split.Split(input.Amount)

	var metadata datatypes.JSON
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, false, err
		}
		metadata = datatypes.JSON(raw)
	}

	status := input.Status
	if status == "" {
		status = domain.StatusPending
	}

	now := s.clock.Now()
	invoice := "INV-" + ulid.Make().String()
	txn := &domain.Transaction{
		ID:                 s.genID.Generate(),
		UserID:             input.UserID,
		ItemType:           input.ItemType,
		ItemID:             input.ItemID,
		ArtistID:           input.ArtistID,
		Gateway:            input.Gateway,
		GatewayReferenceID: strings.TrimSpace(input.GatewayReferenceID),
		Amount:             input.Amount,
		Currency:           currency,
		AmountUSD:          amountUSD,
		ExchangeRate:       rate,
		PlatformFee:        split.PlatformFee,
		ArtistShare:        split.ArtistShare,
		Status:             status,
		InvoiceNumber:      &invoice,
		Metadata:           metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := s.repo.Insert(ctx, s.db, txn)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.repo.FindByGatewayRef(ctx, s.db, txn.Gateway, txn.GatewayReferenceID)
		if err != nil {
			return nil, false, err
		}
		s.log.Debug("duplicate charge absorbed",
			zap.String("gateway", string(txn.Gateway)),
			zap.String("gateway_reference_id", txn.GatewayReferenceID),
		)
		return existing, false, nil
	}

	s.log.Info("transaction recorded",
		zap.Int64("transaction_id", txn.ID.Int64()),
		zap.String("gateway", string(txn.Gateway)),
		zap.String("item_type", string(txn.ItemType)),
		zap.Int64("amount", txn.Amount),
		zap.String("currency", txn.Currency),
	)
	return txn, true, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) HasPaidPurchase(ctx context.Context, userID snowflake.ID, itemType domain.ItemType, itemID snowflake.ID) (bool, error) {
	return s.repo.HasPaid(ctx, s.db, userID, itemType, itemID)
}

func (s *Service) ListUserPurchases(ctx context.Context, userID snowflake.ID, page pagination.Page) ([]domain.Transaction, pagination.Meta, error) {
	page = page.Normalize()
	items, total, err := s.repo.ListByUser(ctx, s.db, userID, page.Offset(), page.PageSize)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return items, pagination.BuildMeta(total, page), nil
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID) error {
	changed, err := s.repo.UpdateStatus(ctx, s.db, id, domain.StatusFailed)
	if err != nil {
		return err
	}
	if changed {
		s.log.Warn("transaction marked failed", zap.Int64("transaction_id", id.Int64()))
	}
	return nil
}
