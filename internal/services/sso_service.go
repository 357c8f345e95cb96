package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyline-id/keyline/internal/models"
	"github.com/keyline-id/keyline/internal/token"
)

// SSOSessionRepository defines the interface for SSO session storage
type SSOSessionRepository interface {
	Create(ctx context.Context, session *models.SSOSession) (*models.SSOSession, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.SSOSession, error)
	FindByToken(ctx context.Context, tokenValue string) (*models.SSOSession, error)
	// FindActiveByUserID returns unrevoked sessions newest first, expired or
	// not.
	FindActiveByUserID(ctx context.Context, userID string) ([]*models.SSOSession, error)
	UpdateLastAccessed(ctx context.Context, sessionID string, at time.Time) error
	RevokeBySessionID(ctx context.Context, sessionID string, at time.Time) error
	RevokeAllByUserID(ctx context.Context, userID string, at time.Time) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SSOService tracks revocable cross-application sessions bound to signed
// session tokens, so one login can serve many client applications and be
// revoked per device or in bulk.
type SSOService struct {
	sessions SSOSessionRepository
	logger   *slog.Logger
}

// NewSSOService creates a new SSOService
func NewSSOService(sessions SSOSessionRepository, logger *slog.Logger) *SSOService {
	return &SSOService{
		sessions: sessions,
		logger:   logger,
	}
}

// CreateSession records a new session for a signed token.
func (s *SSOService) CreateSession(ctx context.Context, userID, tokenValue string, ttl time.Duration) (*models.SSOSession, error) {
	now := time.Now()
	session, err := s.sessions.Create(ctx, &models.SSOSession{
		SessionID:      uuid.New().String(),
		UserID:         userID,
		Token:          tokenValue,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	})
	if err != nil {
		s.logger.Error("failed to create sso session", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("sso session created",
		slog.String("user_id", userID),
		slog.String("session_id", session.SessionID))
	return session, nil
}

// TokenVerification is the result of a successful session check.
type TokenVerification struct {
	SessionID string
	UserID    string
	Email     string
	Username  string
}

// VerifyToken checks that the token is tracked by a live session and bumps
// its last-accessed time. Missing, revoked and expired sessions all surface
// as the same unauthorized error. The claims are the signer-verified payload
// of the token; this service only consults the session state.
func (s *SSOService) VerifyToken(ctx context.Context, tokenValue string, claims *token.SessionClaims) (*TokenVerification, error) {
	if !token.ValidFormat(tokenValue) {
		return nil, fmt.Errorf("invalid token format: %w", models.ErrBadRequest)
	}

	session, err := s.sessions.FindByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("session verification failed: unknown token")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up sso session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if session.Revoked() {
		s.logger.Info("session verification failed: revoked", slog.String("session_id", session.SessionID))
		return nil, models.ErrUnauthorized
	}
	if session.Expired(time.Now()) {
		s.logger.Info("session verification failed: expired", slog.String("session_id", session.SessionID))
		return nil, models.ErrUnauthorized
	}

	if err := s.sessions.UpdateLastAccessed(ctx, session.SessionID, time.Now()); err != nil {
		s.logger.Error("failed to update session last access", slog.String("session_id", session.SessionID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TokenVerification{
		SessionID: session.SessionID,
		UserID:    claims.Subject,
		Email:     claims.Email,
		Username:  claims.Username,
	}, nil
}

// Logout revokes a single session. Revoking an already-revoked session is a
// validation failure, not a silent success.
func (s *SSOService) Logout(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up sso session", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if session.Revoked() {
		return fmt.Errorf("already logged out: %w", models.ErrBadRequest)
	}

	if err := s.sessions.RevokeBySessionID(ctx, sessionID, time.Now()); err != nil {
		s.logger.Error("failed to revoke sso session", slog.String("session_id", sessionID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("sso session revoked", slog.String("session_id", sessionID))
	return nil
}

// LogoutAll revokes every live session for the user. Already-revoked rows
// are skipped; calling this twice is not an error.
func (s *SSOService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAllByUserID(ctx, userID, time.Now()); err != nil {
		s.logger.Error("failed to revoke all sso sessions", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("all sso sessions revoked", slog.String("user_id", userID))
	return nil
}

// GetActiveSessions returns the user's unrevoked sessions regardless of
// expiry; callers filter by wall clock when "active" must also mean
// "not expired".
func (s *SSOService) GetActiveSessions(ctx context.Context, userID string) ([]*models.SSOSession, error) {
	sessions, err := s.sessions.FindActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list sso sessions", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return sessions, nil
}

// HasValidSession returns the most recent session that is neither revoked
// nor expired, or nil when there is none.
func (s *SSOService) HasValidSession(ctx context.Context, userID string) (*models.SSOSession, error) {
	sessions, err := s.sessions.FindActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list sso sessions", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	for _, session := range sessions {
		if !session.Revoked() && !session.Expired(now) {
			return session, nil
		}
	}
	return nil, nil
}
