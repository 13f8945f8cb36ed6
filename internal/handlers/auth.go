package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

const maxRequestBodyBytes = 4 << 10

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*services.AuthResponse, error)
}

// AuthHandler handles the sign-in endpoints
type AuthHandler struct {
	service AuthServiceInterface
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// Request DTOs

// RequestOTPRequest represents the request body for requesting a login code
type RequestOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// VerifyOTPRequest represents the request body for exchanging a code
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,len=6,number"`
}

const otpSentMessage = "If an account exists for this email, a login code has been sent"

// RequestOTP emails a login code
// @Router /api/auth/request-otp [post]
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req RequestOTPRequest
	if !decodeAndValidate(w, r, &req, func() { req.Email = strings.TrimSpace(req.Email) }) {
		return
	}

	if err := h.service.RequestOTP(r.Context(), req.Email); err != nil {
		h.writeAuthError(w, err)
		return
	}

	pkghttp.WriteMessage(w, otpSentMessage)
}

// VerifyOTP exchanges a login code for a session token
// @Router /api/auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	normalize := func() {
		req.Email = strings.TrimSpace(req.Email)
		req.OTP = strings.TrimSpace(req.OTP)
	}
	if !decodeAndValidate(w, r, &req, normalize) {
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, resp)
}

// Login is the retired password endpoint
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteBadRequest(w, "Password login is deprecated. Request a code at /api/auth/request-otp and sign in at /api/auth/verify-otp")
}

// VerifyToken echoes the claims of the bearer token validated by auth.SessionMiddleware
// @Router /api/auth/verify [get]
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Access denied. No token provided.")
		return
	}

	pkghttp.WriteData(w, claims)
}

// decodeAndValidate reads a JSON body into req, runs normalize, and validates.
// On failure it writes a 400 and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}, normalize func()) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	normalize()

	if err := ValidateRequest(req); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "Validation failed", ve.Details)
			return false
		}
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	return true
}

// writeAuthError maps service errors onto responses. Unknown errors become
// a generic 500 with no internal detail.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var lockedErr *models.LockedError

	switch {
	case errors.As(err, &lockedErr):
		pkghttp.WriteLocked(w, fmt.Sprintf(
			"Account is temporarily locked due to too many failed attempts. Try again in %d minute(s)",
			lockedErr.MinutesRemaining()))
	case errors.Is(err, models.ErrInvalidCredential):
		pkghttp.WriteUnauthorized(w, "Invalid email or OTP")
	case errors.Is(err, models.ErrAccountMisconfigured):
		pkghttp.WriteBadRequest(w, "This account has no registered email address. Contact an administrator")
	case errors.Is(err, models.ErrDeliveryFailed):
		pkghttp.WriteInternalError(w, "Failed to send login code. Please try again")
	default:
		if !errors.Is(err, models.ErrInternalServer) {
			h.logger.Error("unexpected auth error", slog.Any("error", err))
		}
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
