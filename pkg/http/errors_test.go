package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Test message", resp.Error)
	assert.Empty(t, resp.Details)
	assert.NotContains(t, w.Body.String(), "details")
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, 400, "Validation failed", []string{"email: must be a valid email address"})

	assert.Equal(t, 400, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, []string{"email: must be a valid email address"}, resp.Details)
}

func TestStatusWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w *httptest.ResponseRecorder)
		status int
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "msg") }, 400},
		{"unauthorized", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "msg") }, 401},
		{"forbidden", func(w *httptest.ResponseRecorder) { pkghttp.WriteForbidden(w, "msg") }, 403},
		{"not found", func(w *httptest.ResponseRecorder) { pkghttp.WriteNotFound(w, "msg") }, 404},
		{"locked", func(w *httptest.ResponseRecorder) { pkghttp.WriteLocked(w, "msg") }, 423},
		{"internal", func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "msg") }, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, "msg", resp.Error)
		})
	}
}

func TestWriteTooManyRequests_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteTooManyRequests(w, "Too many requests", 90*time.Second+time.Millisecond)

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "91", w.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests", decodeError(t, w).Error)
}

func TestWriteTooManyRequests_NoRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteTooManyRequests(w, "Too many requests", 0)

	assert.Equal(t, 429, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteMessage(w, "done")

	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"done"}`, w.Body.String())
}

func TestWriteData(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteData(w, map[string]string{"token": "abc"})

	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"token":"abc"}}`, w.Body.String())
}
