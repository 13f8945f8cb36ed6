package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OneTimeCodeRepository owns all writes to one_time_codes
type OneTimeCodeRepository struct {
	db *database.DB
}

func NewOneTimeCodeRepository(db *database.DB) *OneTimeCodeRepository {
	return &OneTimeCodeRepository{db: db}
}

const codeColumns = `id, account_id, code, expires_at, used, created_at`

func scanCodeRow(row rowScanner) (*models.OneTimeCode, error) {
	var code models.OneTimeCode

	err := row.Scan(
		&code.ID, &code.AccountID, &code.Code,
		&code.ExpiresAt, &code.Used, &code.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

// Issue supersedes every unused code for the account and inserts code in one
// transaction. The account row is locked first so concurrent issues for the
// same account run one after another and only the newest code stays unused.
func (r *OneTimeCodeRepository) Issue(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}

	var issued *models.OneTimeCode
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var accountID string
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, code.AccountID).Scan(&accountID)
		if err != nil {
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE one_time_codes SET used = TRUE WHERE account_id = $1 AND used = FALSE`,
			code.AccountID,
		)
		if err != nil {
			return fmt.Errorf("failed to invalidate previous codes: %w", err)
		}

		query := `
			INSERT INTO one_time_codes (id, account_id, code, expires_at, used, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
			RETURNING ` + codeColumns

		issued, err = scanCodeRow(tx.QueryRow(ctx, query,
			code.ID, code.AccountID, code.Code, code.ExpiresAt, code.CreatedAt,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue one-time code: %w", err)
	}

	return issued, nil
}

// FindActive returns the most recent unused code for the account matching value
func (r *OneTimeCodeRepository) FindActive(ctx context.Context, accountID, value string) (*models.OneTimeCode, error) {
	query := `
		SELECT ` + codeColumns + `
		FROM one_time_codes
		WHERE account_id = $1 AND code = $2 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanCodeRow(r.db.Pool.QueryRow(ctx, query, accountID, value))
}

// MarkUsed flips an unused code to used. Returns ErrNotFound when another
// caller already consumed it.
func (r *OneTimeCodeRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE one_time_codes SET used = TRUE WHERE id = $1 AND used = FALSE`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark code as used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
