package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication flow errors
	ErrInvalidCredential    = errors.New("invalid email or OTP")
	ErrAccountLocked        = errors.New("account is temporarily locked")
	ErrAccountMisconfigured = errors.New("account has no registered email")
	ErrDeliveryFailed       = errors.New("failed to deliver one-time code")

	ErrRateLimitStoreUnavailable = errors.New("rate limit store unavailable")
)

// LockedError reports an account lock together with when it ends
type LockedError struct {
	Until time.Time
	Now   time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s for %d more minute(s)", ErrAccountLocked.Error(), e.MinutesRemaining())
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// MinutesRemaining rounds the remaining lock time up to whole minutes, minimum 1
func (e *LockedError) MinutesRemaining() int {
	remaining := e.Until.Sub(e.Now)
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}
