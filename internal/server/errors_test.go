package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cadenzalabs/cadenza/internal/authorization"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	ledgerdomain "github.com/cadenzalabs/cadenza/internal/ledger/domain"
	paymentdomain "github.com/cadenzalabs/cadenza/internal/payment/domain"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
)

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{catalogdomain.ErrInvalidTitle, http.StatusBadRequest, "validation_error"},
		{ErrInvalidRequest, http.StatusBadRequest, "validation_error"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{paymentdomain.ErrInvalidSignature, http.StatusUnauthorized, "unauthorized"},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{catalogdomain.ErrSongNotFound, http.StatusNotFound, "not_found"},
		{ledgerdomain.ErrPayoutNotFound, http.StatusNotFound, "not_found"},
		{subscriptiondomain.ErrAlreadyCancelled, http.StatusConflict, "conflict"},
		{ledgerdomain.ErrInsufficientBalance, http.StatusConflict, "conflict"},
		{ErrTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		if status != tc.wantStatus {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.wantStatus, status)
		}
		if payload.Type != tc.wantType {
			t.Fatalf("%v: expected type %s, got %s", tc.err, tc.wantType, payload.Type)
		}
	}
}

func TestWrappedErrorsStillMap(t *testing.T) {
	status, _ := mapError(fmt.Errorf("request payout: %w", ledgerdomain.ErrBelowMinimumPayout))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrapped validation error, got %d", status)
	}
}

func TestInternalErrorsHideDetails(t *testing.T) {
	_, payload := mapError(fmt.Errorf("pq: connection refused"))
	if payload.Message != "internal server error" {
		t.Fatalf("internal error leaked detail: %q", payload.Message)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(fmt.Errorf("boom"))
	if kind != "server_error" || code != "internal_error" {
		t.Fatalf("got %s/%s", kind, code)
	}
	kind, code = classifyErrorForLog(authorization.ErrForbidden)
	if kind != "client_error" || code != "forbidden" {
		t.Fatalf("got %s/%s", kind, code)
	}
}
