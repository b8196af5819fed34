package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertSong(ctx context.Context, db *gorm.DB, song *Song) error
	InsertAlbum(ctx context.Context, db *gorm.DB, album *Album) error
	UpdateSong(ctx context.Context, db *gorm.DB, song *Song) error
	UpdateAlbum(ctx context.Context, db *gorm.DB, album *Album) error
	FindSongByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Song, error)
	FindSongBySlug(ctx context.Context, db *gorm.DB, slug string) (*Song, error)
	FindAlbumByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Album, error)
	FindArtistByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Artist, error)
	MarkSongDeleted(ctx context.Context, db *gorm.DB, artistID, songID snowflake.ID) (bool, error)
	MarkAlbumDeleted(ctx context.Context, db *gorm.DB, artistID, albumID snowflake.ID) (bool, error)
	AttachSongsToAlbum(ctx context.Context, db *gorm.DB, albumID, artistID snowflake.ID, songIDs []snowflake.ID) (int64, error)
	ListSongsByArtist(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]Song, int64, error)
	ListAlbumsByArtist(ctx context.Context, db *gorm.DB, artistID snowflake.ID, offset, limit int) ([]Album, int64, error)
	ListSongsByAlbum(ctx context.Context, db *gorm.DB, albumID snowflake.ID) ([]Song, error)
	CountArtistCatalog(ctx context.Context, db *gorm.DB, artistID snowflake.ID) (*ArtistStats, error)
}
