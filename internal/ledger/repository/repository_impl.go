package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO artist_ledger_entries (
			id, artist_id, type, source, ref_id, amount, amount_usd,
			gross_amount, currency, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, ref_id) DO NOTHING`,
		entry.ID,
		entry.ArtistID,
		entry.Type,
		entry.Source,
		entry.RefID,
		entry.Amount,
		entry.AmountUSD,
		entry.GrossAmount,
		entry.Currency,
		entry.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]domain.Entry, int64, error) {
	var items []domain.Entry
	err := db.WithContext(ctx).
		Where("artist_id = ?", artistID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("artist_id = ?", artistID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, artistID snowflake.ID) (*domain.Balance, error) {
	var item domain.Balance
	err := db.WithContext(ctx).
		Where("artist_id = ?", artistID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ArtistID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ApplyCredit(ctx context.Context, db *gorm.DB, artistID snowflake.ID, amount int64, currency string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO artist_balances (
			artist_id, total_earned, available_balance, total_paid_out,
			currency, created_at, updated_at
		) VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (artist_id) DO UPDATE SET
			total_earned = artist_balances.total_earned + excluded.total_earned,
			available_balance = artist_balances.available_balance + excluded.available_balance,
			updated_at = excluded.updated_at`,
		artistID,
		amount,
		amount,
		currency,
		now,
		now,
	).Error
}

func (r *repo) ApplyDebit(ctx context.Context, db *gorm.DB, artistID snowflake.ID, amount int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE artist_balances
		 SET available_balance = available_balance - ?,
		     total_paid_out = total_paid_out + ?,
		     updated_at = ?
		 WHERE artist_id = ? AND available_balance >= ?`,
		amount,
		amount,
		now,
		artistID,
		amount,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertPayout(ctx context.Context, db *gorm.DB, payout *domain.Payout) error {
	return db.WithContext(ctx).Create(payout).Error
}

func (r *repo) FindPayoutByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var item domain.Payout
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkPayoutPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, processedBy snowflake.ID, note *string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE artist_payouts
		 SET status = ?, processed_by = ?, admin_note = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.PayoutStatusPaid,
		processedBy,
		note,
		now,
		now,
		id,
		domain.PayoutStatusRequested,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListPayoutsByArtist(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]domain.Payout, int64, error) {
	var items []domain.Payout
	err := db.WithContext(ctx).
		Where("artist_id = ?", artistID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = db.WithContext(ctx).
		Model(&domain.Payout{}).
		Where("artist_id = ?", artistID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListPayoutsByStatus(ctx context.Context, db *gorm.DB, status domain.PayoutStatus, offset, limit int) ([]domain.Payout, int64, error) {
	var items []domain.Payout
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = db.WithContext(ctx).
		Model(&domain.Payout{}).
		Where("status = ?", status).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
