package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
)

// OneTimeCodeRepository stores issued codes
type OneTimeCodeRepository interface {
	Issue(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error)
	FindActive(ctx context.Context, accountID, value string) (*models.OneTimeCode, error)
	MarkUsed(ctx context.Context, id string) error
}

// CodeGenerator produces a fresh login code
type CodeGenerator func() (string, error)

// OTPLedger issues and verifies one-time login codes
type OTPLedger struct {
	repo     OneTimeCodeRepository
	clock    clock.Clock
	expiry   time.Duration
	generate CodeGenerator
	logger   *slog.Logger
}

// NewOTPLedger creates a ledger whose codes live for expiry
func NewOTPLedger(repo OneTimeCodeRepository, clk clock.Clock, expiry time.Duration, logger *slog.Logger) *OTPLedger {
	return &OTPLedger{
		repo:     repo,
		clock:    clk,
		expiry:   expiry,
		generate: auth.GenerateOTP,
		logger:   logger,
	}
}

// WithGenerator replaces the code generator
func (l *OTPLedger) WithGenerator(generate CodeGenerator) *OTPLedger {
	l.generate = generate
	return l
}

// Expiry is how long an issued code stays valid
func (l *OTPLedger) Expiry() time.Duration {
	return l.expiry
}

// Issue supersedes every unused code for the account and stores a new one.
// The returned code carries the plaintext value for dispatch.
func (l *OTPLedger) Issue(ctx context.Context, accountID string) (*models.OneTimeCode, error) {
	value, err := l.generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	now := l.clock.Now()
	issued, err := l.repo.Issue(ctx, &models.OneTimeCode{
		AccountID: accountID,
		Code:      value,
		ExpiresAt: now.Add(l.expiry),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	return issued, nil
}

// Verify reports whether submitted matches a live code for the account.
// A matching row is always consumed, whether it was still valid or had expired.
// Only one concurrent caller can consume a given row.
func (l *OTPLedger) Verify(ctx context.Context, accountID, submitted string) (bool, error) {
	code, err := l.repo.FindActive(ctx, accountID, submitted)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up code: %w", err)
	}

	expired := code.IsExpiredAt(l.clock.Now())

	if err := l.repo.MarkUsed(ctx, code.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Consumed by a concurrent verify or superseded by a newer issue
			return false, nil
		}
		return false, fmt.Errorf("failed to consume code: %w", err)
	}

	if expired {
		l.logger.Debug("expired code consumed", slog.String("account_id", accountID))
		return false, nil
	}

	return true, nil
}
