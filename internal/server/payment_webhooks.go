package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes caps inbound webhook payloads well above any
// real gateway delivery.
const maxWebhookBodyBytes = 1 << 20

// HandlePaymentWebhook ingests one gateway delivery. Signature
// verification and idempotency live in the webhook pipeline; ignored
// event types still return 200 so the gateway stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
