package server

import (
	"context"
	"errors"
	"net/http"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// StatusFor maps an error to its HTTP status: a rebuild conflict is 409,
// other retryable failures 503, validation 400, a timeout 504 and anything
// else 500.
func StatusFor(err error) int {
	switch {
	case mojierrors.GetCode(err) == mojierrors.ErrCodeRebuildInProgress:
		return http.StatusConflict
	case mojierrors.IsRetryable(err):
		return http.StatusServiceUnavailable
	case mojierrors.GetCategory(err) == mojierrors.CategoryValidation:
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
