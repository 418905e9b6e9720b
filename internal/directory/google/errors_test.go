package google

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

func apiError(code int) error {
	return &googleapi.Error{Code: code, Message: "test"}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil, nil))
}

func TestClassify_GoneIsInvalidCursor(t *testing.T) {
	err := classify(nil, apiError(http.StatusGone))
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
	assert.False(t, driven.IsTransient(err))
	assert.False(t, driven.IsPermanent(err))
}

func TestClassify_Transient(t *testing.T) {
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	} {
		assert.True(t, driven.IsTransient(classify(nil, apiError(code))), "code %d", code)
	}
}

func TestClassify_Permanent(t *testing.T) {
	for _, code := range []int{
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusPreconditionFailed,
	} {
		assert.True(t, driven.IsPermanent(classify(nil, apiError(code))), "code %d", code)
	}
}

func TestClassify_RateLimitArmsBackoff(t *testing.T) {
	limiter := NewRateLimiter(ServicePeople)
	rateErr := &googleapi.Error{
		Code:   http.StatusTooManyRequests,
		Header: http.Header{"Retry-After": []string{"30"}},
	}

	assert.True(t, driven.IsTransient(classify(limiter, rateErr)))

	// The limiter now refuses to release requests until the backoff
	// expires, so a short-lived context runs out while waiting.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify_RateLimitWithoutLimiterStillTransient(t *testing.T) {
	assert.True(t, driven.IsTransient(classify(nil, apiError(http.StatusTooManyRequests))))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.Equal(t, 30, retryAfterSeconds(&googleapi.Error{
		Code:   http.StatusTooManyRequests,
		Header: http.Header{"Retry-After": []string{"30"}},
	}))
	assert.Equal(t, 0, retryAfterSeconds(&googleapi.Error{
		Code:   http.StatusTooManyRequests,
		Header: http.Header{"Retry-After": []string{"soon"}},
	}))
}

func TestClassify_NetworkErrorIsTransient(t *testing.T) {
	err := classify(nil, errors.New("connection reset by peer"))
	assert.True(t, driven.IsTransient(err))
}

func TestClassify_ContextCancellationPassesThrough(t *testing.T) {
	err := classify(nil, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, driven.IsTransient(err))
}

func TestIsGone(t *testing.T) {
	assert.True(t, isGone(apiError(http.StatusNotFound)))
	assert.True(t, isGone(apiError(http.StatusGone)))
	assert.False(t, isGone(apiError(http.StatusInternalServerError)))
	assert.False(t, isGone(errors.New("other")))
}
