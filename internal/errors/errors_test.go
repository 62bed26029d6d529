package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode string
		wantHTTP int
	}{
		{
			name:     "validation",
			err:      NewValidationError("missing required field \"age\""),
			wantCode: "VALIDATION_ERROR",
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "model unavailable",
			err:      NewModelUnavailableError(),
			wantCode: "MODEL_UNAVAILABLE",
			wantHTTP: http.StatusInternalServerError,
		},
		{
			name:     "attribution",
			err:      NewAttributionError("kernel attribution failed", fmt.Errorf("singular matrix")),
			wantCode: "ATTRIBUTION_ERROR",
			wantHTTP: http.StatusInternalServerError,
		},
		{
			name:     "timeout",
			err:      NewTimeoutError("Attribution timed out", context.DeadlineExceeded),
			wantCode: "TIMEOUT_ERROR",
			wantHTTP: http.StatusGatewayTimeout,
		},
		{
			name:     "rate limit",
			err:      NewRateLimitError("30"),
			wantCode: "RATE_LIMIT_EXCEEDED",
			wantHTTP: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.err.Error(), tt.wantCode)
			assert.Equal(t, tt.wantHTTP, tt.err.HTTPStatus)
		})
	}
}

func TestToAppError(t *testing.T) {
	t.Run("passes AppError through unchanged", func(t *testing.T) {
		orig := NewValidationError("bad input")
		assert.Same(t, orig, ToAppError(orig))
	})

	t.Run("maps context deadline to timeout", func(t *testing.T) {
		appErr := ToAppError(context.DeadlineExceeded)
		assert.Equal(t, CategoryTimeout, appErr.Category)
		assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)
	})

	t.Run("maps context cancellation to timeout", func(t *testing.T) {
		appErr := ToAppError(context.Canceled)
		assert.Equal(t, CategoryTimeout, appErr.Category)
	})

	t.Run("wraps unknown errors as internal", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("boom"))
		assert.Equal(t, CategoryInternal, appErr.Category)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToAppError(nil))
	})
}

func TestWithMessagePrefix(t *testing.T) {
	t.Run("prefixes the message and keeps category and status", func(t *testing.T) {
		orig := NewModelUnavailableError()
		wrapped := WithMessagePrefix(orig, "Prediction error")

		require.NotNil(t, wrapped)
		assert.Equal(t, "Prediction error: Model not loaded", wrapped.ErrBuilder.Msg)
		assert.Equal(t, CategoryModel, wrapped.Category)
		assert.Equal(t, orig.HTTPStatus, wrapped.HTTPStatus)
	})

	t.Run("wraps plain errors first", func(t *testing.T) {
		wrapped := WithMessagePrefix(fmt.Errorf("boom"), "Explanation error")
		assert.Equal(t, CategoryInternal, wrapped.Category)
		assert.Contains(t, wrapped.ErrBuilder.Msg, "Explanation error: ")
	})

	t.Run("timeout keeps the gateway timeout status", func(t *testing.T) {
		orig := NewTimeoutError("Attribution timed out", context.DeadlineExceeded)
		wrapped := WithMessagePrefix(orig, "Explanation error")
		assert.Equal(t, "Explanation error: Attribution timed out", wrapped.ErrBuilder.Msg)
		assert.Equal(t, http.StatusGatewayTimeout, wrapped.HTTPStatus)
	})
}
