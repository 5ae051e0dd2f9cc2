package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/vulture/internal/orchestrator"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	fieldErr := (&types.StartRunRequest{}).Validate()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid credentials", &ErrInvalidCredentials{}, http.StatusUnauthorized},
		{"validation", &ErrValidation{Field: "id", Message: "bad"}, http.StatusBadRequest},
		{"field errors", fieldErr, http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: run x", orchestrator.ErrNotFound), http.StatusNotFound},
		{"not pending", fmt.Errorf("wrap: %w", orchestrator.ErrEventNotPending), http.StatusConflict},
		{"terminal", orchestrator.ErrRunTerminal, http.StatusConflict},
		{"invalid reference", fmt.Errorf("%w: profile", orchestrator.ErrInvalidReference), http.StatusBadRequest},
		{"unknown mode", fmt.Errorf("%w: turbo", policy.ErrUnknownMode), http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
