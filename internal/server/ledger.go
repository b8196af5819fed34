package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	ledgerdomain "github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetBalance(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledgerSvc.GetBalance(c.Request.Context(), artistID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, meta, err := s.ledgerSvc.ListEntries(c.Request.Context(), artistID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "meta": meta})
}

type requestPayoutRequest struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	PayoutDestination string `json:"payout_destination"`
}

// RequestPayout admits a withdrawal request against the available
// balance. The balance itself moves when an admin marks it paid.
func (s *Server) RequestPayout(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	destination := strings.TrimSpace(req.PayoutDestination)
	if destination == "" {
		artist, err := s.catalogSvc.GetArtist(c.Request.Context(), artistID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		destination = artist.PayoutDestination
	}

	payout, err := s.ledgerSvc.RequestPayout(c.Request.Context(), ledgerdomain.RequestPayoutInput{
		ArtistID:          artistID,
		Amount:            req.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
		PayoutDestination: destination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordPayout(c.Request.Context(), string(payout.Status))

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func (s *Server) ListOwnPayouts(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payouts, meta, err := s.ledgerSvc.ListArtistPayouts(c.Request.Context(), artistID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payouts, "meta": meta})
}

func (s *Server) PayoutStatement(c *gin.Context) {
	artistID, err := artistIDOf(identityFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	payoutID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.statementSvc.RenderPayoutStatement(c.Request.Context(), artistID, payoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=statement-%d.pdf", payoutID.Int64()))
	c.Data(http.StatusOK, "application/pdf", body)
}

func (s *Server) ListPayoutQueue(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payouts, meta, err := s.ledgerSvc.ListPayoutQueue(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payouts, "meta": meta})
}

type markPaidRequest struct {
	AdminNote *string `json:"admin_note"`
}

// MarkPayoutPaid settles a requested payout and debits the balance.
func (s *Server) MarkPayoutPaid(c *gin.Context) {
	identity := identityFrom(c)
	payoutID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req markPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	payout, err := s.ledgerSvc.MarkPayoutPaid(c.Request.Context(), ledgerdomain.MarkPaidInput{
		PayoutID:    payoutID,
		ProcessedBy: identity.UserID,
		AdminNote:   req.AdminNote,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordPayout(c.Request.Context(), string(payout.Status))

	c.JSON(http.StatusOK, gin.H{"data": payout})
}
