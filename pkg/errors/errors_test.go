package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("bad sort"), http.StatusBadRequest},
		{"not found", NewNotFoundError("no such kind"), http.StatusNotFound},
		{"external", NewExternalError("postgres down", fmt.Errorf("dial tcp")), http.StatusBadGateway},
		{"wrapped validation", fmt.Errorf("search: %w", NewValidationError("bad page")), http.StatusBadRequest},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_UnwrapAndMessage(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewInternalError("failed to list invalid ids", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL: failed to list invalid ids: connection refused", err.Error())
}
