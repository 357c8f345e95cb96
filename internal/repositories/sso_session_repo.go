package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyline-id/keyline/internal/database"
	"github.com/keyline-id/keyline/internal/models"
)

type SSOSessionRepository struct {
	pool *pgxpool.Pool
}

func NewSSOSessionRepository(db *database.DB) *SSOSessionRepository {
	return &SSOSessionRepository{pool: db.Pool}
}

const sessionColumns = `session_id, user_id, token, created_at, expires_at, last_accessed_at, revoked_at`

func scanSessionRow(scanner rowScanner) (*models.SSOSession, error) {
	var session models.SSOSession

	err := scanner.Scan(
		&session.SessionID, &session.UserID, &session.Token,
		&session.CreatedAt, &session.ExpiresAt, &session.LastAccessedAt,
		&session.RevokedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.SSOSession, error) {
	defer rows.Close()

	sessions := make([]*models.SSOSession, 0)

	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sso session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

func (r *SSOSessionRepository) Create(ctx context.Context, session *models.SSOSession) (*models.SSOSession, error) {
	query := `
		INSERT INTO sso_sessions (session_id, user_id, token, created_at, expires_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	return scanSessionRow(r.pool.QueryRow(ctx, query,
		session.SessionID, session.UserID, session.Token,
		session.CreatedAt, session.ExpiresAt, session.LastAccessedAt,
	))
}

func (r *SSOSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.SSOSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sso_sessions WHERE session_id = $1`
	return scanSessionRow(r.pool.QueryRow(ctx, query, sessionID))
}

func (r *SSOSessionRepository) FindByToken(ctx context.Context, tokenValue string) (*models.SSOSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sso_sessions WHERE token = $1`
	return scanSessionRow(r.pool.QueryRow(ctx, query, tokenValue))
}

func (r *SSOSessionRepository) FindActiveByUserID(ctx context.Context, userID string) ([]*models.SSOSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sso_sessions
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sso sessions: %w", err)
	}

	return scanSessionRows(rows)
}

func (r *SSOSessionRepository) UpdateLastAccessed(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sso_sessions SET last_accessed_at = $1 WHERE session_id = $2`

	result, err := r.pool.Exec(ctx, query, at, sessionID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SSOSessionRepository) RevokeBySessionID(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sso_sessions SET revoked_at = $1 WHERE session_id = $2 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, at, sessionID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAllByUserID stamps every live session; already-revoked rows keep
// their original revocation time.
func (r *SSOSessionRepository) RevokeAllByUserID(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE sso_sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`

	_, err := r.pool.Exec(ctx, query, at, userID)
	return database.MapPostgresError(err)
}

func (r *SSOSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sso_sessions WHERE expires_at < NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
