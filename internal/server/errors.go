package server

import (
	"errors"
	"net/http"

	"github.com/cadenzalabs/cadenza/internal/authorization"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
	ledgerdomain "github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"github.com/cadenzalabs/cadenza/internal/media"
	paymentdomain "github.com/cadenzalabs/cadenza/internal/payment/domain"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

// ErrorHandlingMiddleware translates the last recorded error into the
// JSON error envelope once the handler chain finishes.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	targets := []error{
		ErrInvalidRequest,
		catalogdomain.ErrInvalidTitle,
		catalogdomain.ErrInvalidArtist,
		catalogdomain.ErrInvalidAccessType,
		catalogdomain.ErrPriceRequired,
		catalogdomain.ErrPriceNotAllowed,
		catalogdomain.ErrInvalidPrice,
		catalogdomain.ErrAccessTypeMismatch,
		catalogdomain.ErrAlbumOnlyWithoutAlbum,
		catalogdomain.ErrInvalidReleaseDate,
		catalogdomain.ErrSongOwnership,
		subscriptiondomain.ErrInvalidCycle,
		subscriptiondomain.ErrMissingExternalID,
		transactiondomain.ErrInvalidGateway,
		transactiondomain.ErrInvalidItemType,
		transactiondomain.ErrInvalidAmount,
		transactiondomain.ErrMissingReference,
		ledgerdomain.ErrInvalidAmount,
		ledgerdomain.ErrBelowMinimumPayout,
		ledgerdomain.ErrMissingDestination,
		paymentdomain.ErrInvalidProvider,
		paymentdomain.ErrInvalidPayload,
		paymentdomain.ErrInvalidMetadata,
		paymentdomain.ErrInvalidEvent,
		media.ErrInvalidKey,
		identitydomain.ErrInvalidRole,
		authorization.ErrInvalidActor,
		authorization.ErrInvalidObject,
		authorization.ErrInvalidAction,
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	targets := []error{
		gorm.ErrRecordNotFound,
		catalogdomain.ErrSongNotFound,
		catalogdomain.ErrAlbumNotFound,
		catalogdomain.ErrArtistNotFound,
		identitydomain.ErrUserNotFound,
		subscriptiondomain.ErrSubscriptionNotFound,
		ledgerdomain.ErrPayoutNotFound,
		paymentdomain.ErrProviderNotFound,
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	targets := []error{
		subscriptiondomain.ErrExternalIDTaken,
		subscriptiondomain.ErrAlreadyCancelled,
		ledgerdomain.ErrInsufficientBalance,
		ledgerdomain.ErrPayoutAlreadyPaid,
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyErrorForLog feeds the request logger's error fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "server_error", payload.Type
	case status >= 400:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}
