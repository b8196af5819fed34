package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListSubscriptions(c *gin.Context) {
	identity := identityFrom(c)

	subs, err := s.subscriptionSvc.ListUserSubscriptions(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subs})
}

func (s *Server) GetSubscription(c *gin.Context) {
	identity := identityFrom(c)
	artistID, err := parseIDParam(c, "artistId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.Get(c.Request.Context(), identity.UserID, artistID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

// CancelSubscription turns off renewal. Paid time keeps running until
// valid_until, so the row comes back with its remaining window intact.
func (s *Server) CancelSubscription(c *gin.Context) {
	identity := identityFrom(c)
	artistID, err := parseIDParam(c, "artistId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.Cancel(c.Request.Context(), identity.UserID, artistID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}
