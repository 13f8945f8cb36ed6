package models

import (
	"strings"
	"time"
)

// Account is an administrator account that may sign in to the content backend
type Account struct {
	ID             string
	Username       string // Display name used in emails and session claims
	Email          string // Empty when no email has been registered
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLockedAt reports whether the account is locked at the given instant.
// Once now reaches LockedUntil the account is unlocked without any write.
func (a *Account) IsLockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// HasEmail reports whether the account has a registered email address
func (a *Account) HasEmail() bool {
	return strings.TrimSpace(a.Email) != ""
}

// NormalizeEmail lowercases and trims an email for lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
