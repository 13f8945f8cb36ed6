package models

import "time"

// OneTimeCode is an emailed login code. Rows are never deleted; once Used is
// set the row is kept as an audit record.
type OneTimeCode struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpiredAt reports whether the code has expired at now
func (c *OneTimeCode) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
