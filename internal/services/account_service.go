package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyline-id/keyline/internal/models"
	"github.com/keyline-id/keyline/internal/token"
	"github.com/keyline-id/keyline/pkg/password"
)

// AccountConfig holds the orchestration settings the account flows need.
type AccountConfig struct {
	// BaseURL is used only to build verification and reset links.
	BaseURL    string
	SessionTTL time.Duration
}

// DefaultSessionTTL is the SSO session lifetime when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// AccountService orchestrates registration, email verification, login and
// credential recovery across the user directory, the token services, the SSO
// session manager and the mail sender.
type AccountService struct {
	users        *UserService
	repo         UserRepository
	verification *token.VerificationService
	signer       *token.Signer
	sso          *SSOService
	email        EmailService
	logger       *slog.Logger
	config       AccountConfig
}

// NewAccountService creates a new AccountService
func NewAccountService(
	users *UserService,
	repo UserRepository,
	verification *token.VerificationService,
	signer *token.Signer,
	sso *SSOService,
	email EmailService,
	logger *slog.Logger,
	config AccountConfig,
) *AccountService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	return &AccountService{
		users:        users,
		repo:         repo,
		verification: verification,
		signer:       signer,
		sso:          sso,
		email:        email,
		logger:       logger,
		config:       config,
	}
}

// Register creates an account and sends the verification email.
func (s *AccountService) Register(ctx context.Context, email, username, plaintext string) (*models.User, error) {
	if err := validatePassword(plaintext); err != nil {
		return nil, err
	}

	passwordHash, err := password.Hash(plaintext)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Register(ctx, email, username, plaintext, passwordHash)
	if err != nil {
		return nil, err
	}

	verificationToken, err := s.verification.IssueEmailVerification(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to issue verification token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.config.BaseURL, verificationToken)
	if err := s.email.SendVerificationEmail(ctx, user.Email, user.Username, verifyURL); err != nil {
		s.logger.Error("failed to send verification email", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("registration completed, verification email sent", slog.String("user_id", user.ID))
	return user, nil
}

// VerifyEmailResult reports the outcome of an email verification. A token
// consumed against an already-verified account is a success, not an error;
// verification is idempotent.
type VerifyEmailResult struct {
	Verified        bool
	AlreadyVerified bool
	User            *models.User
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AccountService) VerifyEmail(ctx context.Context, verificationToken string) (*VerifyEmailResult, error) {
	claims, err := s.verification.Consume(verificationToken, token.TypeEmailVerification)
	if err != nil {
		s.logger.Info("email verification rejected")
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user for verification", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.EmailVerified {
		s.logger.Info("email already verified", slog.String("user_id", user.ID))
		return &VerifyEmailResult{AlreadyVerified: true, User: user}, nil
	}

	now := time.Now()
	if err := s.repo.MarkEmailVerified(ctx, user.ID, now); err != nil {
		s.logger.Error("failed to mark email verified", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.EmailVerified = true
	user.EmailVerifiedAt = &now
	user.UpdatedAt = now

	if err := s.email.SendWelcomeEmail(ctx, user.Email, user.Username); err != nil {
		s.logger.Error("failed to send welcome email", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", user.ID))
	return &VerifyEmailResult{Verified: true, User: user}, nil
}

// LoginResult carries the signed session token and the tracked SSO session.
type LoginResult struct {
	Token   string
	Session *models.SSOSession
	User    *models.User
}

// Login authenticates by email or username, verifies the password, signs a
// session token and creates a trackable SSO session. Unknown account and
// wrong password surface as the same unauthorized error.
func (s *AccountService) Login(ctx context.Context, account, plaintext string) (*LoginResult, error) {
	user, err := s.users.Authenticate(ctx, account, plaintext)
	if err != nil {
		return nil, err
	}

	if !password.Verify(plaintext, user.PasswordHash) {
		s.logger.Info("login failed: invalid credentials")
		return nil, models.ErrUnauthorized
	}

	sessionToken, err := s.signer.SignSession(user, "", s.config.SessionTTL)
	if err != nil {
		s.logger.Error("failed to sign session token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session, err := s.sso.CreateSession(ctx, user.ID, sessionToken, s.config.SessionTTL)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{Token: sessionToken, Session: session, User: user}, nil
}

// RequestPasswordReset issues a reset token and mails the reset link. It
// reports success whether or not the email belongs to an account, so callers
// cannot enumerate registered addresses.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	resetToken, err := s.verification.IssuePasswordReset(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to issue password reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.BaseURL, resetToken)
	if err := s.email.SendPasswordResetEmail(ctx, user.Email, user.Username, resetURL); err != nil {
		s.logger.Error("failed to send password reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset email sent", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *AccountService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.verification.Consume(resetToken, token.TypePasswordReset)
	if err != nil {
		s.logger.Info("password reset rejected")
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := password.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, claims.UserID, passwordHash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update password", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset completed", slog.String("user_id", claims.UserID))
	return nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.FindByIDWithPassword(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load user for password change", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !password.Verify(currentPassword, user.PasswordHash) {
		s.logger.Info("password change rejected: current password incorrect", slog.String("user_id", userID))
		return models.ErrUnauthorized
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := password.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("user_id", userID))
	return nil
}

// UpdateProfile changes the username, enforcing uniqueness.
func (s *AccountService) UpdateProfile(ctx context.Context, userID, username string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user for profile update", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Username == username {
		return user, nil
	}

	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		s.logger.Error("failed to check username uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if taken {
		return nil, models.ErrConflict
	}

	if err := s.repo.UpdateUsername(ctx, userID, username); err != nil {
		s.logger.Error("failed to update username", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user.Username = username
	user.UpdatedAt = time.Now()
	s.logger.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}
