package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockout(t *testing.T) (*LockoutTracker, *fakeStore, *clock.Fake, *models.Account) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := newFakeStore(clk)
	account := store.addAccount("Editor", "editor@example.com")
	tracker := NewLockoutTracker(store, clk, LockoutConfig{MaxFailedAttempts: 5, LockoutDuration: 30 * time.Minute}, discardLogger())
	return tracker, store, clk, account
}

func TestLockoutTracker_LocksAtThreshold(t *testing.T) {
	tracker, _, clk, account := newTestLockout(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		updated, err := tracker.RecordFailure(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, i, updated.FailedAttempts)
		assert.False(t, tracker.IsLocked(updated))
	}

	updated, err := tracker.RecordFailure(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.FailedAttempts)
	assert.True(t, tracker.IsLocked(updated))
	assert.Equal(t, clk.Now().Add(30*time.Minute), *updated.LockedUntil)
}

func TestLockoutTracker_LockExpiresLazily(t *testing.T) {
	tracker, store, clk, account := newTestLockout(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.RecordFailure(ctx, account.ID)
		require.NoError(t, err)
	}

	locked := store.account(account.ID)
	assert.True(t, tracker.IsLocked(&locked))

	clk.Advance(30*time.Minute - time.Second)
	assert.True(t, tracker.IsLocked(&locked))

	clk.Advance(time.Second)
	assert.False(t, tracker.IsLocked(&locked))

	// Reading does not mutate
	after := store.account(account.ID)
	assert.Equal(t, 5, after.FailedAttempts)
	assert.NotNil(t, after.LockedUntil)
}

func TestLockoutTracker_CheckLocked(t *testing.T) {
	tracker, _, clk, _ := newTestLockout(t)

	until := clk.Now().Add(90 * time.Second)
	err := tracker.CheckLocked(&models.Account{LockedUntil: &until})

	var lockedErr *models.LockedError
	require.True(t, errors.As(err, &lockedErr))
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, 2, lockedErr.MinutesRemaining())

	assert.NoError(t, tracker.CheckLocked(&models.Account{}))
}

func TestLockoutTracker_RecordSuccessResets(t *testing.T) {
	tracker, store, _, account := newTestLockout(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tracker.RecordFailure(ctx, account.ID)
		require.NoError(t, err)
	}

	require.NoError(t, tracker.RecordSuccess(ctx, account.ID))

	after := store.account(account.ID)
	assert.Equal(t, 0, after.FailedAttempts)
	assert.Nil(t, after.LockedUntil)
}

func TestLockoutTracker_FailureAfterExpiryRelocks(t *testing.T) {
	tracker, _, clk, account := newTestLockout(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.RecordFailure(ctx, account.ID)
		require.NoError(t, err)
	}

	clk.Advance(31 * time.Minute)

	updated, err := tracker.RecordFailure(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, updated.FailedAttempts)
	assert.True(t, tracker.IsLocked(updated))
}

func TestLockoutTracker_UnknownAccount(t *testing.T) {
	tracker, _, _, _ := newTestLockout(t)

	_, err := tracker.RecordFailure(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, tracker.RecordSuccess(context.Background(), "missing"), models.ErrNotFound)
}
