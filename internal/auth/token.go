package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and validates stateless admin session tokens
type TokenManager struct {
	secret []byte
	expiry time.Duration
	clock  clock.Clock
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, expiry time.Duration, clk clock.Clock) *TokenManager {
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		clock:  clk,
	}
}

// IssueSessionToken signs an HS256 token carrying the account's identity.
// Returns the token and its expiry.
func (tm *TokenManager) IssueSessionToken(account *models.Account) (string, time.Time, error) {
	now := tm.clock.Now()
	expiresAt := now.Add(tm.expiry)

	claims := &models.SessionClaims{
		AccountID: account.ID,
		Username:  account.Username,
		Email:     account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken verifies signature and expiry and returns the claims.
// No revocation list is consulted.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return tm.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrForbidden, err)
	}

	if !token.Valid || claims.AccountID == "" {
		return nil, models.ErrForbidden
	}

	return claims, nil
}
