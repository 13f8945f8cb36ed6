package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// AccountProvisioner creates accounts
type AccountProvisioner interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
}

// EnsureAdminAccount creates the bootstrap administrator if no account uses
// email yet. Returns the existing or new account.
func EnsureAdminAccount(ctx context.Context, repo AccountProvisioner, email, username string, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: admin email is empty", models.ErrBadRequest)
	}

	existing, err := repo.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("admin account already exists", slog.String("account_id", existing.ID))
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up admin account: %w", err)
	}

	created, err := repo.Create(ctx, &models.Account{Username: username, Email: email})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Another instance created it first
			return repo.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created",
		slog.String("account_id", created.ID),
		slog.String("email", pkglogger.SanitizedEmail(email)))
	auditLogger.LogAccountAction(ctx, pkglogger.EventAdminBootstrapped, created.ID, nil)

	return created, nil
}
