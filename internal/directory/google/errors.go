package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// classify maps a Google API error onto the engine's retry policy.
//
// 410 Gone means the sync token expired and is reported as
// domain.ErrInvalidCursor so the engine can fall back to a full sync.
// Rate limits and server errors are transient; auth and validation
// failures are permanent. Transport-level failures without an HTTP
// status are treated as transient. A 429 additionally feeds its
// Retry-After hint into the limiter so subsequent calls back off.
func classify(limiter *RateLimiter, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return driven.Transient(err)
	}

	switch gerr.Code {
	case http.StatusGone:
		return fmt.Errorf("%w: sync token expired", domain.ErrInvalidCursor)
	case http.StatusTooManyRequests:
		if limiter != nil {
			limiter.RecordRateLimitError(retryAfterSeconds(gerr))
		}
		return driven.Transient(err)
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return driven.Transient(err)
	case http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusPreconditionFailed:
		return driven.Permanent(err)
	default:
		return err
	}
}

// retryAfterSeconds extracts the Retry-After hint from a 429 response.
// Zero means the provider gave none and the limiter's default applies.
func retryAfterSeconds(gerr *googleapi.Error) int {
	if gerr.Header == nil {
		return 0
	}
	secs, err := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

// isGone reports whether the provider no longer has the resource.
// Remove treats this as success.
func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
