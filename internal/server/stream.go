package server

import (
	"net/http"

	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	entitlementdomain "github.com/cadenzalabs/cadenza/internal/entitlement/domain"
	"github.com/gin-gonic/gin"
)

type streamURLResponse struct {
	SongID           string `json:"song_id"`
	Title            string `json:"title"`
	StreamURL        string `json:"stream_url"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// StreamSong re-checks entitlement and mints a short-lived signed URL.
// Nothing about the decision is cached; a lapsed subscription stops
// working on the next request.
func (s *Server) StreamSong(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.entitlementSvc.CanStreamSong(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Allowed {
		s.denyStream(c, decision)
		return
	}

	song, err := s.catalogSvc.GetSong(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	signed, err := s.signer.StreamURL(song.AudioKey)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordStreamURL(c.Request.Context(), "song")

	c.JSON(http.StatusOK, gin.H{"data": streamURLResponse{
		SongID:           song.ID.String(),
		Title:            song.Title,
		StreamURL:        signed,
		ExpiresInSeconds: s.cfg.MediaURLTTLSeconds,
	}})
}

// StreamAlbum checks the album entitlement once and signs every track.
func (s *Server) StreamAlbum(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision, err := s.entitlementSvc.CanStreamAlbum(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Allowed {
		s.denyStream(c, decision)
		return
	}

	songs, err := s.catalogSvc.ListAlbumSongs(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tracks := make([]streamURLResponse, 0, len(songs))
	for _, song := range songs {
		if song.AudioKey == "" {
			continue
		}
		signed, err := s.signer.StreamURL(song.AudioKey)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		tracks = append(tracks, streamURLResponse{
			SongID:           song.ID.String(),
			Title:            song.Title,
			StreamURL:        signed,
			ExpiresInSeconds: s.cfg.MediaURLTTLSeconds,
		})
	}
	s.obsMetrics.RecordStreamURL(c.Request.Context(), "album")

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"album_id": id.String(),
		"tracks":   tracks,
	}})
}

// denyStream maps an entitlement denial onto the HTTP surface. A
// missing item stays indistinguishable from a never-existed one.
func (s *Server) denyStream(c *gin.Context, decision entitlementdomain.Decision) {
	switch decision.Reason {
	case entitlementdomain.ReasonNotFound:
		AbortWithError(c, catalogdomain.ErrSongNotFound)
	case entitlementdomain.ReasonUnauthenticated:
		AbortWithError(c, ErrUnauthorized)
	default:
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: errorPayload{
			Type:    "forbidden",
			Message: string(decision.Reason),
		}})
	}
}
