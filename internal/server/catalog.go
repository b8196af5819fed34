package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
	"github.com/cadenzalabs/cadenza/internal/media"
	"github.com/gin-gonic/gin"
)

type priceRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (p *priceRequest) toDomain() *catalogdomain.Price {
	if p == nil {
		return nil
	}
	return &catalogdomain.Price{Amount: p.Amount, Currency: strings.ToUpper(strings.TrimSpace(p.Currency))}
}

type createSongRequest struct {
	Title           string        `json:"title"`
	AlbumID         *string       `json:"album_id"`
	Genre           string        `json:"genre"`
	ISRC            *string       `json:"isrc"`
	DurationSeconds int           `json:"duration_seconds"`
	CoverImageKey   string        `json:"cover_image_key"`
	AccessType      string        `json:"access_type"`
	AlbumOnly       bool          `json:"album_only"`
	BasePrice       *priceRequest `json:"base_price"`
	ReleaseDate     *string       `json:"release_date"`
}

func (s *Server) CreateSong(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	albumID, err := parseOptionalID(req.AlbumID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	song, err := s.catalogSvc.CreateSong(c.Request.Context(), catalogdomain.CreateSongInput{
		Title:           strings.TrimSpace(req.Title),
		ArtistID:        artistID,
		AlbumID:         albumID,
		Genre:           strings.TrimSpace(req.Genre),
		ISRC:            req.ISRC,
		DurationSeconds: req.DurationSeconds,
		AudioKey:        media.NewAudioKey(artistID.Int64()),
		CoverImageKey:   strings.TrimSpace(req.CoverImageKey),
		AccessType:      catalogdomain.AccessType(strings.TrimSpace(req.AccessType)),
		AlbumOnly:       req.AlbumOnly,
		BasePrice:       req.BasePrice.toDomain(),
		ReleaseDate:     req.ReleaseDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": song})
}

type updateSongRequest struct {
	Title           *string `json:"title"`
	Genre           *string `json:"genre"`
	CoverImageKey   *string `json:"cover_image_key"`
	DurationSeconds *int    `json:"duration_seconds"`
	ReleaseDate     *string `json:"release_date"`
}

func (s *Server) UpdateSong(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	songID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	song, err := s.catalogSvc.UpdateSong(c.Request.Context(), catalogdomain.UpdateSongInput{
		ArtistID:        artistID,
		SongID:          songID,
		Title:           req.Title,
		Genre:           req.Genre,
		CoverImageKey:   req.CoverImageKey,
		DurationSeconds: req.DurationSeconds,
		ReleaseDate:     req.ReleaseDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": song})
}

type createAlbumRequest struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Genre         string        `json:"genre"`
	AccessType    string        `json:"access_type"`
	BasePrice     *priceRequest `json:"base_price"`
	CoverImageKey string        `json:"cover_image_key"`
	SongIDs       []string      `json:"song_ids"`
}

func (s *Server) CreateAlbum(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	input := catalogdomain.CreateAlbumInput{
		Title:         strings.TrimSpace(req.Title),
		ArtistID:      artistID,
		Description:   strings.TrimSpace(req.Description),
		Genre:         strings.TrimSpace(req.Genre),
		AccessType:    catalogdomain.AccessType(strings.TrimSpace(req.AccessType)),
		BasePrice:     req.BasePrice.toDomain(),
		CoverImageKey: strings.TrimSpace(req.CoverImageKey),
	}
	for _, raw := range req.SongIDs {
		value := raw
		id, err := parseOptionalID(&value)
		if err != nil || id == nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		input.SongIDs = append(input.SongIDs, *id)
	}

	album, err := s.catalogSvc.CreateAlbum(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": album})
}

type updateAlbumRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Genre         *string `json:"genre"`
	CoverImageKey *string `json:"cover_image_key"`
}

func (s *Server) UpdateAlbum(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	albumID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	album, err := s.catalogSvc.UpdateAlbum(c.Request.Context(), catalogdomain.UpdateAlbumInput{
		ArtistID:      artistID,
		AlbumID:       albumID,
		Title:         req.Title,
		Description:   req.Description,
		Genre:         req.Genre,
		CoverImageKey: req.CoverImageKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": album})
}

func (s *Server) GetSong(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	song, err := s.catalogSvc.GetSong(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": song})
}

func (s *Server) GetAlbum(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	album, err := s.catalogSvc.GetAlbum(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": album})
}

func (s *Server) ListAlbumSongs(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	songs, err := s.catalogSvc.ListAlbumSongs(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": songs})
}

func (s *Server) ListArtistSongs(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	songs, meta, err := s.catalogSvc.ListArtistSongs(c.Request.Context(), id, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": songs, "meta": meta})
}

func (s *Server) ListArtistAlbums(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	albums, meta, err := s.catalogSvc.ListArtistAlbums(c.Request.Context(), id, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": albums, "meta": meta})
}

// DeleteSong soft deletes a song. Artists can only remove their own;
// admins can remove anything.
func (s *Server) DeleteSong(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	identity := identityFrom(c)
	ownerID, err := s.resolveSongOwner(c, identity, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.catalogSvc.SoftDeleteSong(c.Request.Context(), ownerID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) DeleteAlbum(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	identity := identityFrom(c)
	ownerID, err := s.resolveAlbumOwner(c, identity, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.catalogSvc.SoftDeleteAlbum(c.Request.Context(), ownerID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) resolveSongOwner(c *gin.Context, identity *identitydomain.Identity, songID snowflake.ID) (snowflake.ID, error) {
	if identity != nil && identity.IsAdmin() {
		song, err := s.catalogSvc.GetSong(c.Request.Context(), songID)
		if err != nil {
			return 0, err
		}
		return song.ArtistID, nil
	}
	return artistIDOf(identity)
}

func (s *Server) resolveAlbumOwner(c *gin.Context, identity *identitydomain.Identity, albumID snowflake.ID) (snowflake.ID, error) {
	if identity != nil && identity.IsAdmin() {
		album, err := s.catalogSvc.GetAlbum(c.Request.Context(), albumID)
		if err != nil {
			return 0, err
		}
		return album.ArtistID, nil
	}
	return artistIDOf(identity)
}

// ArtistDashboard aggregates catalog stats and the revenue position in
// one call for the artist home screen.
func (s *Server) ArtistDashboard(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.catalogSvc.ArtistStats(c.Request.Context(), artistID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	balance, err := s.ledgerSvc.GetBalance(c.Request.Context(), artistID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"catalog": stats,
		"balance": balance,
	}})
}
