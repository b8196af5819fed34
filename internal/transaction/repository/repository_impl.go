package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, item_type, item_id, artist_id, gateway,
			gateway_reference_id, amount, currency, amount_usd,
			exchange_rate, platform_fee, artist_share, status,
			invoice_number, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, gateway_reference_id) DO NOTHING`,
		txn.ID,
		txn.UserID,
		txn.ItemType,
		txn.ItemID,
		txn.ArtistID,
		txn.Gateway,
		txn.GatewayReferenceID,
		txn.Amount,
		txn.Currency,
		txn.AmountUSD,
		txn.ExchangeRate,
		txn.PlatformFee,
		txn.ArtistShare,
		txn.Status,
		txn.InvoiceNumber,
		txn.Metadata,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByGatewayRef(ctx context.Context, db *gorm.DB, gateway domain.Gateway, referenceID string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).
		Where("gateway = ? AND gateway_reference_id = ?", gateway, referenceID).
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

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var item domain.Transaction
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

func (r *repo) HasPaid(ctx context.Context, db *gorm.DB, userID snowflake.ID, itemType domain.ItemType, itemID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM transactions
		 WHERE user_id = ? AND item_type = ? AND item_id = ? AND status = ?`,
		userID,
		itemType,
		itemID,
		domain.StatusPaid,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, offset, limit int) ([]domain.Transaction, int64, error) {
	var items []domain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		time.Now().UTC(),
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
