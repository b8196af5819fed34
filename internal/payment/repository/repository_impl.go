package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (
			id, gateway, gateway_event_id, event_type, user_id,
			payload, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, gateway_event_id) DO NOTHING`,
		event.ID,
		event.Gateway,
		event.GatewayEventID,
		event.EventType,
		event.UserID,
		event.Payload,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, gateway, gatewayEventID string) (*domain.EventRecord, error) {
	var event domain.EventRecord
	err := db.WithContext(ctx).
		Where("gateway = ? AND gateway_event_id = ?", gateway, gatewayEventID).
		Limit(1).
		Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
