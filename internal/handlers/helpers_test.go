package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertErrorResponse checks that response is a failure envelope with the given message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.False(t, resp.Success)
	if expectedError != "" {
		assert.Equal(t, expectedError, resp.Error)
	}
	assert.NotEmpty(t, resp.Error, "Error message should not be empty")
	return resp
}

// MockAuthService implements handlers.AuthServiceInterface for testing
type MockAuthService struct {
	RequestOTPFunc func(ctx context.Context, email string) error
	VerifyOTPFunc  func(ctx context.Context, email, code string) (*services.AuthResponse, error)
}

func (m *MockAuthService) RequestOTP(ctx context.Context, email string) error {
	if m.RequestOTPFunc == nil {
		return nil
	}
	return m.RequestOTPFunc(ctx, email)
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, email, code string) (*services.AuthResponse, error) {
	if m.VerifyOTPFunc == nil {
		return nil, models.ErrInvalidCredential
	}
	return m.VerifyOTPFunc(ctx, email, code)
}
