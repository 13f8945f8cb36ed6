package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by an admin session token
type SessionClaims struct {
	AccountID string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// AccountSummary is the account view returned after a successful sign-in
type AccountSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary converts an account into its public summary
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
	}
}
