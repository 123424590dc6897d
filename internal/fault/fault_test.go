package fault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"classified", New(BadRequest, "op", errors.New("boom")), BadRequest},
		{"wrapped classified", fmt.Errorf("stage: %w", New(Speech, "tts", errors.New("boom"))), Speech},
		{"deadline", context.DeadlineExceeded, Transient},
		{"plain", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(Transient, "op", errors.New("rate limited"))))
	assert.False(t, IsRetryable(New(BadRequest, "op", errors.New("bad prompt"))))
	assert.False(t, IsRetryable(New(AuthFailure, "op", errors.New("bad key"))))
	assert.False(t, IsRetryable(errors.New("unclassified")))
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, AuthFailure},
		{http.StatusForbidden, AuthFailure},
		{http.StatusTooManyRequests, Transient},
		{http.StatusInternalServerError, Transient},
		{http.StatusBadGateway, Transient},
		{http.StatusBadRequest, BadRequest},
		{http.StatusUnprocessableEntity, BadRequest},
		{http.StatusNotFound, Unknown},
	}
	for _, tt := range tests {
		got := FromHTTPStatus("op", tt.status, "body")
		assert.Equal(t, tt.want, got.Kind, "status %d", tt.status)
	}
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(New(BadRequest, "op", errors.New("x"))), "different theme")
	assert.Contains(t, UserMessage(New(ContentFault, "op", errors.New("x"))), "different theme")
	assert.Contains(t, UserMessage(New(AuthFailure, "op", errors.New("x"))), "temporarily unavailable")
	assert.Contains(t, UserMessage(errors.New("x")), "temporarily unavailable")
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := New(Store, "blob.put", inner)
	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "blob.put")
	assert.Contains(t, err.Error(), "store_failure")
}
