package respond

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		data     any
		wantCode int
		wantBody map[string]any
	}{
		{
			name:     "success response",
			code:     http.StatusOK,
			data:     map[string]string{"status": "ok"},
			wantCode: http.StatusOK,
			wantBody: map[string]any{"status": "ok"},
		},
		{
			name:     "created response",
			code:     http.StatusCreated,
			data:     map[string]int{"order": 3},
			wantCode: http.StatusCreated,
			wantBody: map[string]any{"order": float64(3)}, // JSON unmarshals numbers as float64
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			JSON(w, r, tt.code, tt.data)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var got map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

func TestError(t *testing.T) {
	t.Run("without request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Error(w, r, http.StatusNotFound, "not found")

		assert.Equal(t, http.StatusNotFound, w.Code)
		var got map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "not found", got["error"])
		_, hasID := got["request_id"]
		assert.False(t, hasID)
	})

	t.Run("with request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-42"))

		Error(w, r, http.StatusBadRequest, "invalid json")

		var got ErrorBody
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "invalid json", got.Error)
		assert.Equal(t, "req-42", got.RequestID)
	})
}

func TestDecode(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"milk"}`))
	require.NoError(t, Decode(r, &dst))
	assert.Equal(t, "milk", dst.Text)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"milk"}`))
	assert.Error(t, Decode(r, &dst))
}
