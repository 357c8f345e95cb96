package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyline-id/keyline/internal/database"
	"github.com/keyline-id/keyline/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, email, username, email_verified, email_verified_at, created_at, updated_at`
const userColumnsWithPassword = `id, email, username, password_hash, email_verified, email_verified_at, created_at, updated_at`

// scanUserRow populates a User without the password hash
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username,
		&user.EmailVerified, &user.EmailVerifiedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// scanUserRowWithPassword populates a User including the password hash
func scanUserRowWithPassword(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.EmailVerified, &user.EmailVerifiedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, username, password_hash, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.EmailVerified, user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumnsWithPassword + ` FROM users WHERE email = $1`
	return scanUserRowWithPassword(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByUsernameWithPassword(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumnsWithPassword + ` FROM users WHERE username = $1`
	return scanUserRowWithPassword(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) FindByIDWithPassword(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumnsWithPassword + ` FROM users WHERE id = $1`
	return scanUserRowWithPassword(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	if err := r.pool.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	query := `
		UPDATE users
		SET email_verified = true, email_verified_at = $1, updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, verifiedAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateUsername(ctx context.Context, id, username string) error {
	query := `UPDATE users SET username = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, username, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
