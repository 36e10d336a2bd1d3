// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ErrIdempotentReplay marks a request whose Idempotency-Key was already processed.
var ErrIdempotentReplay = errors.New("request already processed")

// StatusFor maps ledger error kinds onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrIdempotentReplay):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrState):
		return http.StatusConflict
	case errors.Is(err, shared.ErrIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var titles = map[int]string{
	http.StatusBadRequest:          "Validation Failed",
	http.StatusNotFound:            "Not Found",
	http.StatusConflict:            "Conflict",
	http.StatusUnprocessableEntity: "Integrity Violation",
	http.StatusGatewayTimeout:      "Timeout",
}

// RespondError maps domain errors to HTTP responses using RFC7807. Server
// errors are logged and their detail withheld from the client.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Problem(w, status, "Internal Error", "")
		return
	}
	Problem(w, status, titles[status], err.Error())
}
