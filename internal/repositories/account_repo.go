package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository persists administrator accounts and their lockout state
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, username, email, failed_attempts, locked_until, created_at, updated_at`

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var email *string
	var lockedUntil *time.Time

	err := scanner.Scan(
		&account.ID, &account.Username, &email,
		&account.FailedAttempts, &lockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		account.Email = *email
	}
	account.LockedUntil = lockedUntil

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks an account up by its normalized email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(BTRIM(email)) = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	var email *string
	if account.HasEmail() {
		normalized := models.NormalizeEmail(account.Email)
		email = &normalized
	}

	query := `
		INSERT INTO accounts (id, username, email, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.Username, email, account.CreatedAt, account.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// IncrementFailedAttempts adds one failed attempt and, when the new count
// reaches threshold, sets locked_until in the same statement. The row lock
// taken by UPDATE makes concurrent failures count exactly.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = $4
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccountRow(r.pool.QueryRow(ctx, query, id, threshold, lockUntil, now))
	if err != nil {
		return nil, fmt.Errorf("failed to record failed attempt: %w", err)
	}

	return account, nil
}

// ResetFailedAttempts clears the failure counter and any lock
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE accounts
		SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("failed to reset failed attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
