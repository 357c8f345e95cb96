package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyline-id/keyline/internal/database"
	"github.com/keyline-id/keyline/internal/models"
)

type OAuthClientRepository struct {
	pool *pgxpool.Pool
}

func NewOAuthClientRepository(db *database.DB) *OAuthClientRepository {
	return &OAuthClientRepository{pool: db.Pool}
}

const clientColumns = `id, name, description, redirect_uris, scopes, grant_types, created_at, updated_at`

// scanClientRow populates an OAuthClient without the secret. Array columns
// bind to []string natively under pgx.
func scanClientRow(scanner rowScanner) (*models.OAuthClient, error) {
	var client models.OAuthClient

	err := scanner.Scan(
		&client.ID, &client.Name, &client.Description,
		&client.RedirectURIs, &client.Scopes, &client.GrantTypes,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &client, nil
}

func scanClientRows(rows pgx.Rows) ([]*models.OAuthClient, error) {
	defer rows.Close()

	clients := make([]*models.OAuthClient, 0)

	for rows.Next() {
		client, err := scanClientRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oauth client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return clients, nil
}

func (r *OAuthClientRepository) Create(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error) {
	query := `
		INSERT INTO oauth_clients (id, secret, name, description, redirect_uris, scopes, grant_types, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + clientColumns

	created, err := scanClientRow(r.pool.QueryRow(ctx, query,
		client.ID, client.Secret, client.Name, client.Description,
		client.RedirectURIs, client.Scopes, client.GrantTypes,
		client.CreatedAt, client.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	// The secret is never selected back; echo it for the one-time response.
	created.Secret = client.Secret
	return created, nil
}

func (r *OAuthClientRepository) FindByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	query := `SELECT ` + clientColumns + ` FROM oauth_clients WHERE id = $1`
	return scanClientRow(r.pool.QueryRow(ctx, query, id))
}

func (r *OAuthClientRepository) FindByIDWithSecret(ctx context.Context, id string) (*models.OAuthClient, error) {
	query := `
		SELECT id, secret, name, description, redirect_uris, scopes, grant_types, created_at, updated_at
		FROM oauth_clients WHERE id = $1
	`

	var client models.OAuthClient
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&client.ID, &client.Secret, &client.Name, &client.Description,
		&client.RedirectURIs, &client.Scopes, &client.GrantTypes,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &client, nil
}

func (r *OAuthClientRepository) Update(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error) {
	query := `
		UPDATE oauth_clients
		SET name = $1, description = $2, redirect_uris = $3, scopes = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + clientColumns

	return scanClientRow(r.pool.QueryRow(ctx, query,
		client.Name, client.Description, client.RedirectURIs, client.Scopes,
		client.UpdatedAt, client.ID,
	))
}

func (r *OAuthClientRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM oauth_clients WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *OAuthClientRepository) List(ctx context.Context) ([]*models.OAuthClient, error) {
	query := `SELECT ` + clientColumns + ` FROM oauth_clients ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query oauth clients: %w", err)
	}

	return scanClientRows(rows)
}

func (r *OAuthClientRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM oauth_clients WHERE id = $1)`

	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}
