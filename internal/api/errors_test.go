package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storyloom/storyboard-api/internal/api"
	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/service"
	"github.com/storyloom/storyboard-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "job not found", err: service.ErrJobNotFound, expected: http.StatusNotFound},
		{name: "store job not found", err: store.ErrJobNotFound, expected: http.StatusNotFound},
		{name: "generic not found", err: store.ErrNotFound, expected: http.StatusNotFound},
		{name: "job not deletable", err: service.ErrJobNotDeletable, expected: http.StatusConflict},
		{name: "duplicate entity", err: store.ErrDuplicate, expected: http.StatusConflict},
		{name: "invalid entity", err: store.ErrInvalidEntity, expected: http.StatusBadRequest},
		{name: "validation failure", err: domain.ErrValidation, expected: http.StatusBadRequest},
		{name: "invalid workflow mode", err: domain.ErrInvalidWorkflowMode, expected: http.StatusBadRequest},
		{name: "invalid batch count", err: domain.ErrInvalidBatchCount, expected: http.StatusBadRequest},
		{name: "unknown error", err: errors.New("database exploded"), expected: http.StatusInternalServerError},
		{
			name:     "wrapped sentinel",
			err:      fmt.Errorf("get job: %w", service.ErrJobNotFound),
			expected: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, api.MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Job not found", api.GetSafeErrorMessage(service.ErrJobNotFound))
	assert.Equal(t, "Job is still in progress and cannot be deleted",
		api.GetSafeErrorMessage(service.ErrJobNotDeletable))
	assert.Equal(t, "Invalid workflow mode", api.GetSafeErrorMessage(domain.ErrInvalidWorkflowMode))
	assert.Equal(t, "An unexpected error occurred", api.GetSafeErrorMessage(nil))

	// Internal details never leak through the safe message.
	internal := errors.New("pgx: connection to postgres://user:hunter2@db failed")
	assert.Equal(t, "An unexpected error occurred", api.GetSafeErrorMessage(internal))
}
