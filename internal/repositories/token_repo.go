package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyline-id/keyline/internal/database"
	"github.com/keyline-id/keyline/internal/models"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{pool: db.Pool}
}

func (r *TokenRepository) StoreAccessToken(ctx context.Context, t *models.AccessToken) error {
	query := `
		INSERT INTO oauth_access_tokens (token, client_id, user_id, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		t.Token, t.ClientID, t.UserID, t.Scopes, t.ExpiresAt, t.CreatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *TokenRepository) StoreRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO oauth_refresh_tokens (token, client_id, user_id, scopes, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		t.Token, t.ClientID, t.UserID, t.Scopes, t.ExpiresAt, t.CreatedAt, t.Revoked,
	)
	return database.MapPostgresError(err)
}

func (r *TokenRepository) FindAccessToken(ctx context.Context, tokenValue string) (*models.AccessToken, error) {
	query := `
		SELECT token, client_id, user_id, scopes, expires_at, created_at
		FROM oauth_access_tokens WHERE token = $1
	`

	var t models.AccessToken
	err := r.pool.QueryRow(ctx, query, tokenValue).Scan(
		&t.Token, &t.ClientID, &t.UserID, &t.Scopes,
		&t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &t, nil
}

func (r *TokenRepository) FindRefreshToken(ctx context.Context, tokenValue string) (*models.RefreshToken, error) {
	query := `
		SELECT token, client_id, user_id, scopes, expires_at, created_at, revoked
		FROM oauth_refresh_tokens WHERE token = $1
	`

	var t models.RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenValue).Scan(
		&t.Token, &t.ClientID, &t.UserID, &t.Scopes,
		&t.ExpiresAt, &t.CreatedAt, &t.Revoked,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &t, nil
}

// DeleteAccessToken is idempotent; deleting an unknown token is not an error.
func (r *TokenRepository) DeleteAccessToken(ctx context.Context, tokenValue string) error {
	query := `DELETE FROM oauth_access_tokens WHERE token = $1`

	_, err := r.pool.Exec(ctx, query, tokenValue)
	return database.MapPostgresError(err)
}

// RevokeRefreshToken is idempotent; revoking an unknown or already-revoked
// token is not an error.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, tokenValue string) error {
	query := `UPDATE oauth_refresh_tokens SET revoked = true WHERE token = $1`

	_, err := r.pool.Exec(ctx, query, tokenValue)
	return database.MapPostgresError(err)
}

// RevokeAllUserTokens flags the user's refresh tokens revoked and drops their
// access-token records so introspection stops recognizing them.
func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM oauth_access_tokens WHERE user_id = $1`, userID); err != nil {
		return database.MapPostgresError(err)
	}

	query := `UPDATE oauth_refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`

	_, err := r.pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

// RevokeAllClientTokens flags the client's refresh tokens revoked and drops
// its access-token records.
func (r *TokenRepository) RevokeAllClientTokens(ctx context.Context, clientID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM oauth_access_tokens WHERE client_id = $1`, clientID); err != nil {
		return database.MapPostgresError(err)
	}

	query := `UPDATE oauth_refresh_tokens SET revoked = true WHERE client_id = $1 AND revoked = false`

	_, err := r.pool.Exec(ctx, query, clientID)
	return database.MapPostgresError(err)
}

// DeleteExpired removes expired rows from both token tables and reports the
// total.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var deleted int64

	result, err := r.pool.Exec(ctx, `DELETE FROM oauth_access_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	deleted += result.RowsAffected()

	result, err = r.pool.Exec(ctx, `DELETE FROM oauth_refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return deleted, database.MapPostgresError(err)
	}
	deleted += result.RowsAffected()

	return deleted, nil
}
