package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nutridash/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Please upload a valid CSV file."))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "Please upload a valid CSV file." {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("store failure maps to 503", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(io.ErrUnexpectedEOF, dErrors.CodeUnavailable, "failed to save record"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("extra fields ride along without overriding the envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorWith(w, dErrors.New(dErrors.CodeValidation, "row 2: bad value"), map[string]any{
			"result": map[string]int{"created": 1},
			"error":  "ignored",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			Error       string         `json:"error"`
			Description string         `json:"error_description"`
			Result      map[string]int `json:"result"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, "row 2: bad value", body.Description)
		assert.Equal(t, 1, body.Result["created"])
	})
}

type searchBody struct {
	Term string `json:"term"`
}

func (b *searchBody) Validate() error {
	b.Term = strings.TrimSpace(b.Term)
	if len(b.Term) > 10 {
		return dErrors.New(dErrors.CodeValidation, "term too long")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid body is normalized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"term":"  chad "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[searchBody](w, r, logger, r.Context(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "chad", req.Term)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"term":`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[searchBody](w, r, logger, r.Context(), "req-2")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation error is written", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"term":"way too long a term"}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[searchBody](w, r, logger, r.Context(), "req-3")
		assert.False(t, ok)
		assert.Contains(t, w.Body.String(), "validation_error")
	})
}
