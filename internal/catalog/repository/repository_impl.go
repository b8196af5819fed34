package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertSong(ctx context.Context, db *gorm.DB, song *domain.Song) error {
	return db.WithContext(ctx).Create(song).Error
}

func (r *repo) InsertAlbum(ctx context.Context, db *gorm.DB, album *domain.Album) error {
	return db.WithContext(ctx).Create(album).Error
}

func (r *repo) UpdateSong(ctx context.Context, db *gorm.DB, song *domain.Song) error {
	return db.WithContext(ctx).Save(song).Error
}

func (r *repo) UpdateAlbum(ctx context.Context, db *gorm.DB, album *domain.Album) error {
	return db.WithContext(ctx).Save(album).Error
}

func (r *repo) FindSongByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Song, error) {
	var item domain.Song
	err := db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
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

func (r *repo) FindSongBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Song, error) {
	var item domain.Song
	err := db.WithContext(ctx).
		Where("slug = ? AND is_deleted = ?", slug, false).
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

func (r *repo) FindAlbumByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Album, error) {
	var item domain.Album
	err := db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
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

func (r *repo) FindArtistByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Artist, error) {
	var item domain.Artist
	err := db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
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

func (r *repo) MarkSongDeleted(ctx context.Context, db *gorm.DB, artistID, songID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE songs
		 SET is_deleted = TRUE, deleted_at = ?
		 WHERE id = ? AND artist_id = ? AND is_deleted = FALSE`,
		time.Now().UTC(),
		songID,
		artistID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkAlbumDeleted(ctx context.Context, db *gorm.DB, artistID, albumID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE albums
		 SET is_deleted = TRUE, deleted_at = ?
		 WHERE id = ? AND artist_id = ? AND is_deleted = FALSE`,
		time.Now().UTC(),
		albumID,
		artistID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) AttachSongsToAlbum(ctx context.Context, db *gorm.DB, albumID, artistID snowflake.ID, songIDs []snowflake.ID) (int64, error) {
	if len(songIDs) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE songs
		 SET album_id = ?, updated_at = ?
		 WHERE id IN ? AND artist_id = ? AND is_deleted = FALSE`,
		albumID,
		time.Now().UTC(),
		songIDs,
		artistID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListSongsByArtist(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]domain.Song, int64, error) {
	var items []domain.Song
	err := db.WithContext(ctx).
		Where("artist_id = ? AND is_deleted = ?", artistID, false).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = db.WithContext(ctx).
		Model(&domain.Song{}).
		Where("artist_id = ? AND is_deleted = ?", artistID, false).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListAlbumsByArtist(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]domain.Album, int64, error) {
	var items []domain.Album
	err := db.WithContext(ctx).
		Where("artist_id = ? AND is_deleted = ?", artistID, false).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = db.WithContext(ctx).
		Model(&domain.Album{}).
		Where("artist_id = ? AND is_deleted = ?", artistID, false).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListSongsByAlbum(ctx context.Context, db *gorm.DB, albumID snowflake.ID) ([]domain.Song, error) {
	var items []domain.Song
	err := db.WithContext(ctx).
		Where("album_id = ? AND is_deleted = ?", albumID, false).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountArtistCatalog(ctx context.Context, db *gorm.DB, artistID snowflake.ID) (*domain.ArtistStats, error) {
	stats := &domain.ArtistStats{}

	type countRow struct {
		Total        int64
		Singles      int64
		Subscription int64
		PurchaseOnly int64
	}
	var songs countRow
	err := db.WithContext(ctx).Raw(
		`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN album_id IS NULL THEN 1 ELSE 0 END), 0) AS singles,
			COALESCE(SUM(CASE WHEN access_type = 'subscription' THEN 1 ELSE 0 END), 0) AS subscription,
			COALESCE(SUM(CASE WHEN access_type = 'purchase-only' THEN 1 ELSE 0 END), 0) AS purchase_only
		 FROM songs
		 WHERE artist_id = ? AND is_deleted = FALSE`,
		artistID,
	).Scan(&songs).Error
	if err != nil {
		return nil, err
	}

	var albums int64
	err = db.WithContext(ctx).
		Model(&domain.Album{}).
		Where("artist_id = ? AND is_deleted = ?", artistID, false).
		Count(&albums).Error
	if err != nil {
		return nil, err
	}

	stats.TotalSongs = songs.Total
	stats.TotalSingles = songs.Singles
	stats.SubscriptionSongs = songs.Subscription
	stats.PurchaseOnlySongs = songs.PurchaseOnly
	stats.TotalAlbums = albums
	stats.RevenueReady = songs.Subscription > 0 || songs.PurchaseOnly > 0
	return stats, nil
}
