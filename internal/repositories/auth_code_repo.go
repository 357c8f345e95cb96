package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyline-id/keyline/internal/database"
	"github.com/keyline-id/keyline/internal/models"
)

type AuthorizationCodeRepository struct {
	pool *pgxpool.Pool
}

func NewAuthorizationCodeRepository(db *database.DB) *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{pool: db.Pool}
}

const authCodeColumns = `code, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, created_at, used`

func scanAuthCodeRow(scanner rowScanner) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode

	err := scanner.Scan(
		&code.Code, &code.ClientID, &code.UserID, &code.RedirectURI,
		&code.Scopes, &code.CodeChallenge, &code.CodeChallengeMethod,
		&code.ExpiresAt, &code.CreatedAt, &code.Used,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

func (r *AuthorizationCodeRepository) Create(ctx context.Context, code *models.AuthorizationCode) (*models.AuthorizationCode, error) {
	query := `
		INSERT INTO oauth_authorization_codes (code, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, created_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + authCodeColumns

	return scanAuthCodeRow(r.pool.QueryRow(ctx, query,
		code.Code, code.ClientID, code.UserID, code.RedirectURI,
		code.Scopes, code.CodeChallenge, code.CodeChallengeMethod,
		code.ExpiresAt, code.CreatedAt, code.Used,
	))
}

func (r *AuthorizationCodeRepository) FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	query := `SELECT ` + authCodeColumns + ` FROM oauth_authorization_codes WHERE code = $1`
	return scanAuthCodeRow(r.pool.QueryRow(ctx, query, code))
}

// MarkAsUsed performs the single-use transition as one conditional update.
// The WHERE clause makes concurrent redemptions race on the row: every
// caller after the first sees zero rows affected and gets ErrNotFound.
func (r *AuthorizationCodeRepository) MarkAsUsed(ctx context.Context, code string) error {
	query := `UPDATE oauth_authorization_codes SET used = true WHERE code = $1 AND used = false`

	result, err := r.pool.Exec(ctx, query, code)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AuthorizationCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM oauth_authorization_codes WHERE expires_at < NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
