package shared

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitFixture struct {
	VideoID      string `json:"video_id" validate:"required"`
	TotalBatches int    `json:"total_batches" validate:"gt=0"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/api/jobs",
			bytes.NewBufferString(`{"video_id":"vid-7","total_batches":3}`))

		var got submitFixture
		require.NoError(t, DecodeJSON(req, &got))
		assert.Equal(t, "vid-7", got.VideoID)
		assert.Equal(t, 3, got.TotalBatches)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/api/jobs",
			bytes.NewBufferString(`{"video_id":"vid-7","total_batches":3,"frame_rate":24}`))

		var got submitFixture
		assert.Error(t, DecodeJSON(req, &got))
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/api/jobs", bytes.NewBufferString(`{"video_id":`))

		var got submitFixture
		assert.Error(t, DecodeJSON(req, &got))
	})
}

type selfValidating struct {
	err error
}

func (s selfValidating) Validate() error { return s.err }

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	t.Run("struct tags", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, ValidateRequest(submitFixture{VideoID: "vid-7", TotalBatches: 1}))
		assert.Error(t, ValidateRequest(submitFixture{TotalBatches: 1}))
		assert.Error(t, ValidateRequest(submitFixture{VideoID: "vid-7"}))
	})

	t.Run("custom Validate method wins", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("bad request")
		assert.ErrorIs(t, ValidateRequest(selfValidating{err: wantErr}), wantErr)
		assert.NoError(t, ValidateRequest(selfValidating{}))
	})
}
