package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdminAccount_Creates(t *testing.T) {
	store := newFakeStore(clock.NewFake(time.Now()))
	logger := discardLogger()

	account, err := EnsureAdminAccount(context.Background(), store, " Admin@Example.com ", "Admin", logger, pkglogger.NewAuditLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", account.Email)
	assert.Equal(t, "Admin", account.Username)

	found, err := store.GetByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
}

func TestEnsureAdminAccount_Idempotent(t *testing.T) {
	store := newFakeStore(clock.NewFake(time.Now()))
	existing := store.addAccount("Owner", "admin@example.com")
	logger := discardLogger()

	account, err := EnsureAdminAccount(context.Background(), store, "admin@example.com", "Admin", logger, nil)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, account.ID)
	assert.Len(t, store.accounts, 1)
}

func TestEnsureAdminAccount_EmptyEmail(t *testing.T) {
	store := newFakeStore(clock.NewFake(time.Now()))

	_, err := EnsureAdminAccount(context.Background(), store, "  ", "Admin", discardLogger(), nil)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

type erroringProvisioner struct{}

func (erroringProvisioner) GetByEmail(context.Context, string) (*models.Account, error) {
	return nil, errors.New("connection refused")
}

func (erroringProvisioner) Create(context.Context, *models.Account) (*models.Account, error) {
	return nil, errors.New("unreachable")
}

func TestEnsureAdminAccount_LookupError(t *testing.T) {
	_, err := EnsureAdminAccount(context.Background(), erroringProvisioner{}, "admin@example.com", "Admin", discardLogger(), nil)
	assert.Error(t, err)
}
