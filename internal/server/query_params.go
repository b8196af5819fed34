package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/authorization"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}

func bindPage(c *gin.Context) (pagination.Page, error) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		return pagination.Page{}, ErrInvalidRequest
	}
	return page.Normalize(), nil
}

// artistIDOf resolves the artist the caller manages. Role checks run
// earlier; an artist-role account without a linked artist row still has
// nothing to act on.
func artistIDOf(identity *identitydomain.Identity) (snowflake.ID, error) {
	if identity == nil || identity.ArtistID == nil {
		return 0, authorization.ErrForbidden
	}
	return *identity.ArtistID, nil
}

func parseOptionalID(raw *string) (*snowflake.ID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(strings.TrimSpace(*raw))
	if err != nil || id == 0 {
		return nil, ErrInvalidRequest
	}
	return &id, nil
}
