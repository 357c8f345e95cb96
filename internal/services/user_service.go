package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyline-id/keyline/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	FindByUsernameWithPassword(ctx context.Context, username string) (*models.User, error)
	FindByIDWithPassword(ctx context.Context, id string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	MarkEmailVerified(ctx context.Context, id string, verifiedAt time.Time) error
	UpdateUsername(ctx context.Context, id, username string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// UserService owns registration and authentication lookup. It holds no
// tokens; password hashing policy stays with the caller, which hands in an
// already-hashed password.
type UserService struct {
	repo   UserRepository
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// Register validates the registration input, enforces email and username
// uniqueness, and persists a new user with the given password hash.
func (s *UserService) Register(ctx context.Context, email, username, password, passwordHash string) (*models.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	email = strings.ToLower(email)

	emailExists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if emailExists {
		s.logger.Info("registration rejected: email already registered")
		return nil, models.ErrConflict
	}

	usernameExists, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		s.logger.Error("failed to check username uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if usernameExists {
		s.logger.Info("registration rejected: username already taken")
		return nil, models.ErrConflict
	}

	now := time.Now()
	user, err := s.repo.Create(ctx, &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// A concurrent registration can still lose the uniqueness race at
		// the storage layer.
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate looks up a user by email or username for login. The returned
// user includes the password hash; comparing it against the presented
// password is the caller's job, and the caller must fail with the same
// unauthorized error to keep invalid-account and invalid-password
// indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, account, password string) (*models.User, error) {
	if isEmailAccount(account) {
		if err := validateEmail(account); err != nil {
			return nil, err
		}
	} else {
		if err := validateUsername(account); err != nil {
			return nil, err
		}
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	var (
		user *models.User
		err  error
	)
	if isEmailAccount(account) {
		user, err = s.repo.FindByEmailWithPassword(ctx, strings.ToLower(account))
	} else {
		user, err = s.repo.FindByUsernameWithPassword(ctx, account)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("authentication failed: invalid credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up user for authentication", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email (case-insensitive)
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}
