package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("send_dm: %w", Wrap(ProviderUnavailable, cause, "post to %s failed", "C1"))

	assert.Equal(t, ProviderUnavailable, KindOf(err))
	assert.True(t, Is(err, ProviderUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "post to C1 failed", Message(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, Internal))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ProviderUnavailable))
	for _, k := range []Kind{AlreadyExists, NotFound, PoolExhausted, DmNotFound, ToolNotFound, InvalidArgument} {
		assert.False(t, Retryable(k), string(k))
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		InvalidArgument:     http.StatusBadRequest,
		NotFound:            http.StatusNotFound,
		DmNotFound:          http.StatusNotFound,
		ToolNotFound:        http.StatusNotFound,
		AlreadyExists:       http.StatusConflict,
		ProviderUnavailable: http.StatusBadGateway,
		PoolExhausted:       http.StatusServiceUnavailable,
		Internal:            http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}
