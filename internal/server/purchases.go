package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListPurchases(c *gin.Context) {
	identity := identityFrom(c)
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	purchases, meta, err := s.transactionSvc.ListUserPurchases(c.Request.Context(), identity.UserID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": purchases, "meta": meta})
}
