package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
)

// CreateSongInput carries validated fields for a new song.
type CreateSongInput struct {
	Title           string
	ArtistID        snowflake.ID
	AlbumID         *snowflake.ID
	Genre           string
	ISRC            *string
	DurationSeconds int
	AudioKey        string
	CoverImageKey   string
	AccessType      AccessType
	AlbumOnly       bool
	BasePrice       *Price
	ReleaseDate     *string
}

// CreateAlbumInput carries validated fields for a new album.
type CreateAlbumInput struct {
	Title         string
	ArtistID      snowflake.ID
	Description   string
	Genre         string
	AccessType    AccessType
	BasePrice     *Price
	CoverImageKey string
	SongIDs       []snowflake.ID
}

// UpdateSongInput carries metadata changes for an existing song. Nil
// fields stay untouched; commercial terms are fixed at creation.
type UpdateSongInput struct {
	ArtistID        snowflake.ID
	SongID          snowflake.ID
	Title           *string
	Genre           *string
	CoverImageKey   *string
	DurationSeconds *int
	ReleaseDate     *string
}

// UpdateAlbumInput carries metadata changes for an existing album. Nil
// fields stay untouched; commercial terms are fixed at creation.
type UpdateAlbumInput struct {
	ArtistID      snowflake.ID
	AlbumID       snowflake.ID
	Title         *string
	Description   *string
	Genre         *string
	CoverImageKey *string
}

// Service is the catalog write/read surface.
type Service interface {
	CreateSong(ctx context.Context, input CreateSongInput) (*Song, error)
	UpdateSong(ctx context.Context, input UpdateSongInput) (*Song, error)
	CreateAlbum(ctx context.Context, input CreateAlbumInput) (*Album, error)
	UpdateAlbum(ctx context.Context, input UpdateAlbumInput) (*Album, error)
	GetSong(ctx context.Context, id snowflake.ID) (*Song, error)
	GetSongBySlug(ctx context.Context, slug string) (*Song, error)
	GetAlbum(ctx context.Context, id snowflake.ID) (*Album, error)
	GetArtist(ctx context.Context, id snowflake.ID) (*Artist, error)
	SoftDeleteSong(ctx context.Context, artistID, songID snowflake.ID) error
	SoftDeleteAlbum(ctx context.Context, artistID, albumID snowflake.ID) error
	ListArtistSongs(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]Song, pagination.Meta, error)
	ListArtistAlbums(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]Album, pagination.Meta, error)
	ListAlbumSongs(ctx context.Context, albumID snowflake.ID) ([]Song, error)
	ArtistStats(ctx context.Context, artistID snowflake.ID) (*ArtistStats, error)
}

// ArtistStats summarizes an artist's catalog for the dashboard.
type ArtistStats struct {
	TotalSongs        int64 `json:"total_songs"`
	TotalSingles      int64 `json:"total_singles"`
	SubscriptionSongs int64 `json:"subscription_songs"`
	PurchaseOnlySongs int64 `json:"purchase_only_songs"`
	TotalAlbums       int64 `json:"total_albums"`
	RevenueReady      bool  `json:"revenue_ready"`
}

var (
	ErrInvalidTitle          = errors.New("invalid_title")
	ErrInvalidArtist         = errors.New("invalid_artist")
	ErrInvalidAccessType     = errors.New("invalid_access_type")
	ErrPriceRequired         = errors.New("price_required")
	ErrPriceNotAllowed       = errors.New("price_not_allowed")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrAccessTypeMismatch    = errors.New("album_access_type_mismatch")
	ErrAlbumNotFound         = errors.New("album_not_found")
	ErrSongNotFound          = errors.New("song_not_found")
	ErrArtistNotFound        = errors.New("artist_not_found")
	ErrSongOwnership         = errors.New("song_not_owned_by_artist")
	ErrAlbumOnlyWithoutAlbum = errors.New("album_only_requires_album")
	ErrInvalidReleaseDate    = errors.New("invalid_release_date")
)
