package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/catalog/domain"
	pricingdomain "github.com/cadenzalabs/cadenza/internal/pricing/domain"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
	"github.com/gosimple/slug"
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
	Converter pricingdomain.Converter
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	converter pricingdomain.Converter
	listings  *listingCache
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("catalog.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		converter: p.Converter,
		listings:  newListingCache(),
	}
}

// uniqueSlug derives a URL slug from the title plus the row ID so two
// items with the same title never collide.
func uniqueSlug(title string, id snowflake.ID) string {
	return slug.Make(title) + "-" + strconv.FormatInt(id.Int64(), 36)
}

func validatePriceForAccess(accessType domain.AccessType, price *domain.Price) error {
	switch accessType {
	case domain.AccessTypePurchaseOnly:
		if price == nil {
			return domain.ErrPriceRequired
		}
		if price.Amount <= 0 || strings.TrimSpace(price.Currency) == "" {
			return domain.ErrInvalidPrice
		}
	default:
		if price != nil {
			return domain.ErrPriceNotAllowed
		}
	}
	return nil
}

func (s *Service) convertedPrices(base *domain.Price) (datatypes.JSON, error) {
	if base == nil {
		return nil, nil
	}
	prices, err := s.converter.Convert(*base)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(prices)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func parseReleaseDate(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(*v))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) CreateSong(ctx context.Context, input domain.CreateSongInput) (*domain.Song, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if input.ArtistID == 0 {
		return nil, domain.ErrInvalidArtist
	}
	if !domain.ValidAccessType(input.AccessType) {
		return nil, domain.ErrInvalidAccessType
	}
	if input.AlbumOnly && input.AlbumID == nil {
		return nil, domain.ErrAlbumOnlyWithoutAlbum
	}

	// Album-only songs inherit the album's commercial terms: the album
	// carries the price. Album-attached songs that are also sold on
	// their own price like any single.
	if input.AlbumOnly {
		if input.BasePrice != nil {
			return nil, domain.ErrPriceNotAllowed
		}
	} else if err := validatePriceForAccess(input.AccessType, input.BasePrice); err != nil {
		return nil, err
	}

	releaseDate, err := parseReleaseDate(input.ReleaseDate)
	if err != nil {
		return nil, domain.ErrInvalidReleaseDate
	}

	artist, err := s.repo.FindArtistByID(ctx, s.db, input.ArtistID)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, domain.ErrArtistNotFound
	}

	if input.AlbumID != nil {
		album, err := s.repo.FindAlbumByID(ctx, s.db, *input.AlbumID)
		if err != nil {
			return nil, err
		}
		if album == nil {
			return nil, domain.ErrAlbumNotFound
		}
		if album.ArtistID != input.ArtistID {
			return nil, domain.ErrAlbumNotFound
		}
		if album.AccessType != input.AccessType {
			return nil, domain.ErrAccessTypeMismatch
		}
	}

	converted, err := s.convertedPrices(input.BasePrice)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	song := &domain.Song{
		ID:              s.genID.Generate(),
		Title:           title,
		ArtistID:        input.ArtistID,
		AlbumID:         input.AlbumID,
		Genre:           strings.TrimSpace(input.Genre),
		ISRC:            input.ISRC,
		DurationSeconds: input.DurationSeconds,
		AudioKey:        input.AudioKey,
		CoverImageKey:   input.CoverImageKey,
		AccessType:      input.AccessType,
		AlbumOnly:       input.AlbumOnly,
		ConvertedPrices: converted,
		Status:          domain.SongStatusDraft,
		ReleaseDate:     releaseDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	song.Slug = uniqueSlug(title, song.ID)
	if input.BasePrice != nil {
		song.BasePriceAmount = &input.BasePrice.Amount
		currency := strings.ToUpper(strings.TrimSpace(input.BasePrice.Currency))
		song.BasePriceCurrency = &currency
	}

	if err := s.repo.InsertSong(ctx, s.db, song); err != nil {
		return nil, err
	}
	s.listings.invalidate(song.ArtistID)

	s.log.Info("song created",
		zap.Int64("song_id", song.ID.Int64()),
		zap.Int64("artist_id", song.ArtistID.Int64()),
		zap.String("access_type", string(song.AccessType)),
	)
	return song, nil
}

func (s *Service) UpdateSong(ctx context.Context, input domain.UpdateSongInput) (*domain.Song, error) {
	if input.ArtistID == 0 {
		return nil, domain.ErrInvalidArtist
	}

	song, err := s.repo.FindSongByID(ctx, s.db, input.SongID)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, domain.ErrSongNotFound
	}
	if song.ArtistID != input.ArtistID {
		return nil, domain.ErrSongNotFound
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		song.Title = title
		song.Slug = uniqueSlug(title, song.ID)
	}
	if input.Genre != nil {
		song.Genre = strings.TrimSpace(*input.Genre)
	}
	if input.CoverImageKey != nil {
		song.CoverImageKey = strings.TrimSpace(*input.CoverImageKey)
	}
	if input.DurationSeconds != nil {
		song.DurationSeconds = *input.DurationSeconds
	}
	if input.ReleaseDate != nil {
		releaseDate, err := parseReleaseDate(input.ReleaseDate)
		if err != nil {
			return nil, domain.ErrInvalidReleaseDate
		}
		song.ReleaseDate = releaseDate
	}
	song.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateSong(ctx, s.db, song); err != nil {
		return nil, err
	}
	s.listings.invalidate(song.ArtistID)

	s.log.Info("song updated",
		zap.Int64("song_id", song.ID.Int64()),
		zap.Int64("artist_id", song.ArtistID.Int64()),
	)
	return song, nil
}

func (s *Service) UpdateAlbum(ctx context.Context, input domain.UpdateAlbumInput) (*domain.Album, error) {
	if input.ArtistID == 0 {
		return nil, domain.ErrInvalidArtist
	}

	album, err := s.repo.FindAlbumByID(ctx, s.db, input.AlbumID)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, domain.ErrAlbumNotFound
	}
	if album.ArtistID != input.ArtistID {
		return nil, domain.ErrAlbumNotFound
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		album.Title = title
		album.Slug = uniqueSlug(title, album.ID)
	}
	if input.Description != nil {
		album.Description = strings.TrimSpace(*input.Description)
	}
	if input.Genre != nil {
		album.Genre = strings.TrimSpace(*input.Genre)
	}
	if input.CoverImageKey != nil {
		album.CoverImageKey = strings.TrimSpace(*input.CoverImageKey)
	}
	album.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateAlbum(ctx, s.db, album); err != nil {
		return nil, err
	}
	s.listings.invalidate(album.ArtistID)

	s.log.Info("album updated",
		zap.Int64("album_id", album.ID.Int64()),
		zap.Int64("artist_id", album.ArtistID.Int64()),
	)
	return album, nil
}

func (s *Service) CreateAlbum(ctx context.Context, input domain.CreateAlbumInput) (*domain.Album, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if input.ArtistID == 0 {
		return nil, domain.ErrInvalidArtist
	}
	if !domain.ValidAccessType(input.AccessType) {
		return nil, domain.ErrInvalidAccessType
	}
	if err := validatePriceForAccess(input.AccessType, input.BasePrice); err != nil {
		return nil, err
	}

	artist, err := s.repo.FindArtistByID(ctx, s.db, input.ArtistID)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, domain.ErrArtistNotFound
	}

	converted, err := s.convertedPrices(input.BasePrice)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	album := &domain.Album{
		ID:              s.genID.Generate(),
		Title:           title,
		ArtistID:        input.ArtistID,
		Description:     strings.TrimSpace(input.Description),
		Genre:           strings.TrimSpace(input.Genre),
		AccessType:      input.AccessType,
		ConvertedPrices: converted,
		CoverImageKey:   input.CoverImageKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	album.Slug = uniqueSlug(title, album.ID)
	if input.BasePrice != nil {
		album.BasePriceAmount = &input.BasePrice.Amount
		currency := strings.ToUpper(strings.TrimSpace(input.BasePrice.Currency))
		album.BasePriceCurrency = &currency
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertAlbum(ctx, tx, album); err != nil {
			return err
		}
		if len(input.SongIDs) > 0 {
			attached, err := s.repo.AttachSongsToAlbum(ctx, tx, album.ID, input.ArtistID, input.SongIDs)
			if err != nil {
				return err
			}
			// Any ID that did not match an owned live song aborts the
			// whole creation rather than producing a partial album.
			if attached != int64(len(input.SongIDs)) {
				return domain.ErrSongOwnership
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.listings.invalidate(album.ArtistID)

	s.log.Info("album created",
		zap.Int64("album_id", album.ID.Int64()),
		zap.Int64("artist_id", album.ArtistID.Int64()),
		zap.Int("songs_attached", len(input.SongIDs)),
	)
	return album, nil
}

func (s *Service) GetSong(ctx context.Context, id snowflake.ID) (*domain.Song, error) {
	song, err := s.repo.FindSongByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, domain.ErrSongNotFound
	}
	return song, nil
}

func (s *Service) GetSongBySlug(ctx context.Context, songSlug string) (*domain.Song, error) {
	song, err := s.repo.FindSongBySlug(ctx, s.db, strings.TrimSpace(songSlug))
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, domain.ErrSongNotFound
	}
	return song, nil
}

func (s *Service) GetAlbum(ctx context.Context, id snowflake.ID) (*domain.Album, error) {
	album, err := s.repo.FindAlbumByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, domain.ErrAlbumNotFound
	}
	return album, nil
}

func (s *Service) GetArtist(ctx context.Context, id snowflake.ID) (*domain.Artist, error) {
	artist, err := s.repo.FindArtistByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, domain.ErrArtistNotFound
	}
	return artist, nil
}

func (s *Service) SoftDeleteSong(ctx context.Context, artistID, songID snowflake.ID) error {
	ok, err := s.repo.MarkSongDeleted(ctx, s.db, artistID, songID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSongNotFound
	}
	s.listings.invalidate(artistID)
	s.log.Info("song deleted", zap.Int64("song_id", songID.Int64()), zap.Int64("artist_id", artistID.Int64()))
	return nil
}

func (s *Service) SoftDeleteAlbum(ctx context.Context, artistID, albumID snowflake.ID) error {
	ok, err := s.repo.MarkAlbumDeleted(ctx, s.db, artistID, albumID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlbumNotFound
	}
	s.listings.invalidate(artistID)
	s.log.Info("album deleted", zap.Int64("album_id", albumID.Int64()), zap.Int64("artist_id", artistID.Int64()))
	return nil
}

func (s *Service) ListArtistSongs(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]domain.Song, pagination.Meta, error) {
	page = page.Normalize()
	key := s.listings.key(artistID, page)
	if cached, ok := s.listings.songs.Get(key); ok {
		return cached.items, cached.meta, nil
	}

	items, total, err := s.repo.ListSongsByArtist(ctx, s.db, artistID, page.Offset(), page.PageSize)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	meta := pagination.BuildMeta(total, page)
	s.listings.songs.Set(key, songPage{items: items, meta: meta}, listingTTL)
	return items, meta, nil
}

func (s *Service) ListArtistAlbums(ctx context.Context, artistID snowflake.ID, page pagination.Page) ([]domain.Album, pagination.Meta, error) {
	page = page.Normalize()
	key := s.listings.key(artistID, page)
	if cached, ok := s.listings.albums.Get(key); ok {
		return cached.items, cached.meta, nil
	}

	items, total, err := s.repo.ListAlbumsByArtist(ctx, s.db, artistID, page.Offset(), page.PageSize)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	meta := pagination.BuildMeta(total, page)
	s.listings.albums.Set(key, albumPage{items: items, meta: meta}, listingTTL)
	return items, meta, nil
}

func (s *Service) ListAlbumSongs(ctx context.Context, albumID snowflake.ID) ([]domain.Song, error) {
	album, err := s.repo.FindAlbumByID(ctx, s.db, albumID)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, domain.ErrAlbumNotFound
	}
	return s.repo.ListSongsByAlbum(ctx, s.db, albumID)
}

func (s *Service) ArtistStats(ctx context.Context, artistID snowflake.ID) (*domain.ArtistStats, error) {
	artist, err := s.repo.FindArtistByID(ctx, s.db, artistID)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, domain.ErrArtistNotFound
	}
	return s.repo.CountArtistCatalog(ctx, s.db, artistID)
}
