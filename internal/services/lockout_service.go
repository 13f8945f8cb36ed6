package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
)

// AccountRepository reads accounts and updates their lockout state
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	IncrementFailedAttempts(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.Account, error)
	ResetFailedAttempts(ctx context.Context, id string, now time.Time) error
}

// LockoutConfig holds the lockout thresholds
type LockoutConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// LockoutTracker counts failed verifications per account and locks the
// account once MaxFailedAttempts is reached. Expiry is checked lazily.
type LockoutTracker struct {
	repo   AccountRepository
	clock  clock.Clock
	config LockoutConfig
	logger *slog.Logger
}

func NewLockoutTracker(repo AccountRepository, clk clock.Clock, config LockoutConfig, logger *slog.Logger) *LockoutTracker {
	return &LockoutTracker{
		repo:   repo,
		clock:  clk,
		config: config,
		logger: logger,
	}
}

// IsLocked reports whether the account's lock is still in the future
func (t *LockoutTracker) IsLocked(account *models.Account) bool {
	return account.IsLockedAt(t.clock.Now())
}

// CheckLocked returns a *models.LockedError while the account is locked, nil otherwise
func (t *LockoutTracker) CheckLocked(account *models.Account) error {
	now := t.clock.Now()
	if !account.IsLockedAt(now) {
		return nil
	}
	return &models.LockedError{Until: *account.LockedUntil, Now: now}
}

// RecordFailure counts one failed attempt and returns the updated account.
// The increment and the threshold check happen in one storage operation.
func (t *LockoutTracker) RecordFailure(ctx context.Context, accountID string) (*models.Account, error) {
	now := t.clock.Now()

	account, err := t.repo.IncrementFailedAttempts(ctx, accountID,
		t.config.MaxFailedAttempts, now.Add(t.config.LockoutDuration), now)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}

	if account.IsLockedAt(now) {
		t.logger.Warn("account locked after failed attempts",
			slog.String("account_id", accountID),
			slog.Int("failed_attempts", account.FailedAttempts),
			slog.Time("locked_until", *account.LockedUntil))
	}

	return account, nil
}

// RecordSuccess clears the failure counter and any lock
func (t *LockoutTracker) RecordSuccess(ctx context.Context, accountID string) error {
	if err := t.repo.ResetFailedAttempts(ctx, accountID, t.clock.Now()); err != nil {
		return fmt.Errorf("failed to reset failed attempts: %w", err)
	}
	return nil
}
