package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"github.com/cadenzalabs/cadenza/internal/observability/metrics"
	"github.com/cadenzalabs/cadenza/internal/pricing"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Split   *pricing.SplitHolder
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	split   *pricing.SplitHolder
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		split:   p.Split,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func validSource(s domain.Source) bool {
	switch s {
	case domain.SourceSong, domain.SourceAlbum, domain.SourceSubscription, domain.SourcePayout:
		return true
	default:
		return false
	}
}

func (s *Service) Credit(ctx context.Context, input domain.CreditInput) (bool, error) {
	if input.ArtistID == 0 {
		return false, domain.ErrInvalidArtist
	}
	if input.Amount <= 0 {
		return false, domain.ErrInvalidAmount
	}
	if !validSource(input.Source) || input.Source == domain.SourcePayout {
		return false, domain.ErrInvalidSource
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	now := s.clock.Now()
	entry := &domain.Entry{
		ID:          s.genID.Generate(),
		ArtistID:    input.ArtistID,
		Type:        domain.EntryTypeCredit,
		Source:      input.Source,
		RefID:       input.RefID,
		Amount:      input.Amount,
		AmountUSD:   input.AmountUSD,
		GrossAmount: input.GrossAmount,
		Currency:    currency,
		CreatedAt:   now,
	}

	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertEntry(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			// Same charge credited before; the balance already
			// reflects it.
			return nil
		}
		created = true
		return s.repo.ApplyCredit(ctx, tx, input.ArtistID, input.Amount, currency, now)
	})
	if err != nil {
		return false, err
	}

	if created {
		s.metrics.RecordLedgerEntry(ctx, string(domain.EntryTypeCredit), string(input.Source))
		s.log.Info("artist credited",
			zap.Int64("artist_id", input.ArtistID.Int64()),
			zap.String("source", string(input.Source)),
			zap.Int64("ref_id", input.RefID.Int64()),
			zap.Int64("amount", input.Amount),
		)
	} else {
		s.log.Debug("duplicate credit absorbed",
			zap.Int64("artist_id", input.ArtistID.Int64()),
			zap.Int64("ref_id", input.RefID.Int64()),
		)
	}
	return created, nil
}

func (s *Service) GetBalance(ctx context.Context, artistID snowflake.ID) (*domain.Balance, error) {
	balance, err := s.repo.FindBalance(ctx, s.db, artistID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		// No earnings yet reads as a zero balance, not an error.
		return &domain.Balance{ArtistID: artistID, Currency: "USD"}, nil
	}
	return balance, nil
}

func (s *Service) ListEntries(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]domain.Entry, pagination.Meta, error) {
	page = page.Normalize()
	items, total, err := s.repo.ListEntries(ctx, s.db, artistID, page.Offset(), page.PageSize)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return items, pagination.BuildMeta(total, page), nil
}

func (s *Service) RequestPayout(ctx context.Context, input domain.RequestPayoutInput) (*domain.Payout, error) {
	if input.ArtistID == 0 {
		return nil, domain.ErrInvalidArtist
	}
	if input.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if input.Amount < s.split.MinPayoutAmount() {
		return nil, domain.ErrBelowMinimumPayout
	}
	destination := strings.TrimSpace(input.PayoutDestination)
	if destination == "" {
		return nil, domain.ErrMissingDestination
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	// Admission check only. The money leaves the balance when an admin
	// marks the payout paid, guarded by the conditional debit there.
	balance, err := s.repo.FindBalance(ctx, s.db, input.ArtistID)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.AvailableBalance < input.Amount {
		return nil, domain.ErrInsufficientBalance
	}

	now := s.clock.Now()
	payout := &domain.Payout{
		ID:                s.genID.Generate(),
		ArtistID:          input.ArtistID,
		Amount:            input.Amount,
		Currency:          currency,
		PayoutDestination: destination,
		Status:            domain.PayoutStatusRequested,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.InsertPayout(ctx, s.db, payout); err != nil {
		return nil, err
	}

	s.metrics.RecordPayout(ctx, string(domain.PayoutStatusRequested))
	s.log.Info("payout requested",
		zap.Int64("payout_id", payout.ID.Int64()),
		zap.Int64("artist_id", input.ArtistID.Int64()),
		zap.Int64("amount", input.Amount),
	)
	return payout, nil
}

// MarkPayoutPaid settles a requested payout: the status flip, the
// balance debit, and the debit ledger line land in one transaction.
// Re-invoking on an already-paid payout is a no-op so retried admin
// actions can never debit twice.
func (s *Service) MarkPayoutPaid(ctx context.Context, input domain.MarkPaidInput) (*domain.Payout, error) {
	payout, err := s.repo.FindPayoutByID(ctx, s.db, input.PayoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, domain.ErrPayoutNotFound
	}
	if payout.Status == domain.PayoutStatusPaid {
		s.log.Debug("payout already paid", zap.Int64("payout_id", payout.ID.Int64()))
		return payout, nil
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.MarkPayoutPaid(ctx, tx, input.PayoutID, input.ProcessedBy, input.AdminNote, now)
		if err != nil {
			return err
		}
		if !changed {
			// Lost the race to another admin; treat as the no-op case.
			return nil
		}

		ok, err := s.repo.ApplyDebit(ctx, tx, payout.ArtistID, payout.Amount, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientBalance
		}

		entry := &domain.Entry{
			ID:        s.genID.Generate(),
			ArtistID:  payout.ArtistID,
			Type:      domain.EntryTypeDebit,
			Source:    domain.SourcePayout,
			RefID:     payout.ID,
			Amount:    payout.Amount,
			Currency:  payout.Currency,
			CreatedAt: now,
		}
		inserted, err := s.repo.InsertEntry(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			// A debit line for this payout already exists; the status
			// flip above should have been impossible.
			return domain.ErrPayoutAlreadyPaid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLedgerEntry(ctx, string(domain.EntryTypeDebit), string(domain.SourcePayout))
	s.metrics.RecordPayout(ctx, string(domain.PayoutStatusPaid))
	s.log.Info("payout paid",
		zap.Int64("payout_id", input.PayoutID.Int64()),
		zap.Int64("artist_id", payout.ArtistID.Int64()),
		zap.Int64("processed_by", input.ProcessedBy.Int64()),
	)
	return s.repo.FindPayoutByID(ctx, s.db, input.PayoutID)
}

func (s *Service) GetPayout(ctx context.Context, id snowflake.ID) (*domain.Payout, error) {
	payout, err := s.repo.FindPayoutByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, domain.ErrPayoutNotFound
	}
	return payout, nil
}

func (s *Service) ListArtistPayouts(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]domain.Payout, pagination.Meta, error) {
	page = page.Normalize()
	items, total, err := s.repo.ListPayoutsByArtist(ctx, s.db, artistID, page.Offset(), page.PageSize)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return items, pagination.BuildMeta(total, page), nil
}

func (s *Service) ListPayoutQueue(ctx context.Context, page pagination.Page) ([]domain.Payout, pagination.Meta, error) {
	page = page.Normalize()
	items, total, err := s.repo.ListPayoutsByStatus(ctx, s.db, domain.PayoutStatusRequested, page.Offset(), page.PageSize)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return items, pagination.BuildMeta(total, page), nil
}
