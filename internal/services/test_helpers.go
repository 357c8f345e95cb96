package services

import (
	"context"
	"time"

	"github.com/keyline-id/keyline/internal/models"
)

// NewTestUser builds a user row the way the repository would return it.
func NewTestUser(id, email, username string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestClient builds a registered OAuth client with sane defaults.
func NewTestClient(id, secret string) *models.OAuthClient {
	now := time.Now()
	return &models.OAuthClient{
		ID:           id,
		Secret:       secret,
		Name:         "Test Application",
		RedirectURIs: []string{"https://app.example.com/callback"},
		Scopes:       []string{"openid", "profile"},
		GrantTypes:   []string{models.GrantAuthorizationCode, models.GrantRefreshToken},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc                     func(ctx context.Context, user *models.User) (*models.User, error)
	FindByIDFunc                   func(ctx context.Context, id string) (*models.User, error)
	FindByEmailFunc                func(ctx context.Context, email string) (*models.User, error)
	FindByUsernameFunc             func(ctx context.Context, username string) (*models.User, error)
	FindByEmailWithPasswordFunc    func(ctx context.Context, email string) (*models.User, error)
	FindByUsernameWithPasswordFunc func(ctx context.Context, username string) (*models.User, error)
	FindByIDWithPasswordFunc       func(ctx context.Context, id string) (*models.User, error)
	EmailExistsFunc                func(ctx context.Context, email string) (bool, error)
	UsernameExistsFunc             func(ctx context.Context, username string) (bool, error)
	MarkEmailVerifiedFunc          func(ctx context.Context, id string, verifiedAt time.Time) error
	UpdateUsernameFunc             func(ctx context.Context, id, username string) error
	UpdatePasswordFunc             func(ctx context.Context, id, passwordHash string) error
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	if m.FindByEmailWithPasswordFunc != nil {
		return m.FindByEmailWithPasswordFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByUsernameWithPassword(ctx context.Context, username string) (*models.User, error) {
	if m.FindByUsernameWithPasswordFunc != nil {
		return m.FindByUsernameWithPasswordFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByIDWithPassword(ctx context.Context, id string) (*models.User, error) {
	if m.FindByIDWithPasswordFunc != nil {
		return m.FindByIDWithPasswordFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		return m.EmailExistsFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.UsernameExistsFunc != nil {
		return m.UsernameExistsFunc(ctx, username)
	}
	return false, nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id, verifiedAt)
	}
	return nil
}

func (m *MockUserRepository) UpdateUsername(ctx context.Context, id, username string) error {
	if m.UpdateUsernameFunc != nil {
		return m.UpdateUsernameFunc(ctx, id, username)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// MockOAuthClientRepository implements OAuthClientRepository for testing
type MockOAuthClientRepository struct {
	CreateFunc             func(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error)
	FindByIDFunc           func(ctx context.Context, id string) (*models.OAuthClient, error)
	FindByIDWithSecretFunc func(ctx context.Context, id string) (*models.OAuthClient, error)
	UpdateFunc             func(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error)
	DeleteFunc             func(ctx context.Context, id string) error
	ListFunc               func(ctx context.Context) ([]*models.OAuthClient, error)
	ExistsFunc             func(ctx context.Context, id string) (bool, error)
}

func (m *MockOAuthClientRepository) Create(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, client)
	}
	return client, nil
}

func (m *MockOAuthClientRepository) FindByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockOAuthClientRepository) FindByIDWithSecret(ctx context.Context, id string) (*models.OAuthClient, error) {
	if m.FindByIDWithSecretFunc != nil {
		return m.FindByIDWithSecretFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockOAuthClientRepository) Update(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, client)
	}
	return client, nil
}

func (m *MockOAuthClientRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockOAuthClientRepository) List(ctx context.Context) ([]*models.OAuthClient, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.OAuthClient{}, nil
}

func (m *MockOAuthClientRepository) Exists(ctx context.Context, id string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return false, nil
}

// MockAuthorizationCodeRepository implements AuthorizationCodeRepository for testing
type MockAuthorizationCodeRepository struct {
	CreateFunc        func(ctx context.Context, code *models.AuthorizationCode) (*models.AuthorizationCode, error)
	FindByCodeFunc    func(ctx context.Context, code string) (*models.AuthorizationCode, error)
	MarkAsUsedFunc    func(ctx context.Context, code string) error
	DeleteExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockAuthorizationCodeRepository) Create(ctx context.Context, code *models.AuthorizationCode) (*models.AuthorizationCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, code)
	}
	return code, nil
}

func (m *MockAuthorizationCodeRepository) FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockAuthorizationCodeRepository) MarkAsUsed(ctx context.Context, code string) error {
	if m.MarkAsUsedFunc != nil {
		return m.MarkAsUsedFunc(ctx, code)
	}
	return models.ErrNotFound
}

func (m *MockAuthorizationCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockTokenRepository implements TokenRepository for testing
type MockTokenRepository struct {
	StoreAccessTokenFunc      func(ctx context.Context, t *models.AccessToken) error
	StoreRefreshTokenFunc     func(ctx context.Context, t *models.RefreshToken) error
	FindAccessTokenFunc       func(ctx context.Context, tokenValue string) (*models.AccessToken, error)
	FindRefreshTokenFunc      func(ctx context.Context, tokenValue string) (*models.RefreshToken, error)
	DeleteAccessTokenFunc     func(ctx context.Context, tokenValue string) error
	RevokeRefreshTokenFunc    func(ctx context.Context, tokenValue string) error
	RevokeAllUserTokensFunc   func(ctx context.Context, userID string) error
	RevokeAllClientTokensFunc func(ctx context.Context, clientID string) error
	DeleteExpiredFunc         func(ctx context.Context) (int64, error)
}

func (m *MockTokenRepository) StoreAccessToken(ctx context.Context, t *models.AccessToken) error {
	if m.StoreAccessTokenFunc != nil {
		return m.StoreAccessTokenFunc(ctx, t)
	}
	return nil
}

func (m *MockTokenRepository) StoreRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	if m.StoreRefreshTokenFunc != nil {
		return m.StoreRefreshTokenFunc(ctx, t)
	}
	return nil
}

func (m *MockTokenRepository) FindAccessToken(ctx context.Context, tokenValue string) (*models.AccessToken, error) {
	if m.FindAccessTokenFunc != nil {
		return m.FindAccessTokenFunc(ctx, tokenValue)
	}
	return nil, models.ErrNotFound
}

func (m *MockTokenRepository) DeleteAccessToken(ctx context.Context, tokenValue string) error {
	if m.DeleteAccessTokenFunc != nil {
		return m.DeleteAccessTokenFunc(ctx, tokenValue)
	}
	return nil
}

func (m *MockTokenRepository) FindRefreshToken(ctx context.Context, tokenValue string) (*models.RefreshToken, error) {
	if m.FindRefreshTokenFunc != nil {
		return m.FindRefreshTokenFunc(ctx, tokenValue)
	}
	return nil, models.ErrNotFound
}

func (m *MockTokenRepository) RevokeRefreshToken(ctx context.Context, tokenValue string) error {
	if m.RevokeRefreshTokenFunc != nil {
		return m.RevokeRefreshTokenFunc(ctx, tokenValue)
	}
	return nil
}

func (m *MockTokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if m.RevokeAllUserTokensFunc != nil {
		return m.RevokeAllUserTokensFunc(ctx, userID)
	}
	return nil
}

func (m *MockTokenRepository) RevokeAllClientTokens(ctx context.Context, clientID string) error {
	if m.RevokeAllClientTokensFunc != nil {
		return m.RevokeAllClientTokensFunc(ctx, clientID)
	}
	return nil
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockSSOSessionRepository implements SSOSessionRepository for testing
type MockSSOSessionRepository struct {
	CreateFunc             func(ctx context.Context, session *models.SSOSession) (*models.SSOSession, error)
	FindBySessionIDFunc    func(ctx context.Context, sessionID string) (*models.SSOSession, error)
	FindByTokenFunc        func(ctx context.Context, tokenValue string) (*models.SSOSession, error)
	FindActiveByUserIDFunc func(ctx context.Context, userID string) ([]*models.SSOSession, error)
	UpdateLastAccessedFunc func(ctx context.Context, sessionID string, at time.Time) error
	RevokeBySessionIDFunc  func(ctx context.Context, sessionID string, at time.Time) error
	RevokeAllByUserIDFunc  func(ctx context.Context, userID string, at time.Time) error
	DeleteExpiredFunc      func(ctx context.Context) (int64, error)
}

func (m *MockSSOSessionRepository) Create(ctx context.Context, session *models.SSOSession) (*models.SSOSession, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return session, nil
}

func (m *MockSSOSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.SSOSession, error) {
	if m.FindBySessionIDFunc != nil {
		return m.FindBySessionIDFunc(ctx, sessionID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSSOSessionRepository) FindByToken(ctx context.Context, tokenValue string) (*models.SSOSession, error) {
	if m.FindByTokenFunc != nil {
		return m.FindByTokenFunc(ctx, tokenValue)
	}
	return nil, models.ErrNotFound
}

func (m *MockSSOSessionRepository) FindActiveByUserID(ctx context.Context, userID string) ([]*models.SSOSession, error) {
	if m.FindActiveByUserIDFunc != nil {
		return m.FindActiveByUserIDFunc(ctx, userID)
	}
	return []*models.SSOSession{}, nil
}

func (m *MockSSOSessionRepository) UpdateLastAccessed(ctx context.Context, sessionID string, at time.Time) error {
	if m.UpdateLastAccessedFunc != nil {
		return m.UpdateLastAccessedFunc(ctx, sessionID, at)
	}
	return nil
}

func (m *MockSSOSessionRepository) RevokeBySessionID(ctx context.Context, sessionID string, at time.Time) error {
	if m.RevokeBySessionIDFunc != nil {
		return m.RevokeBySessionIDFunc(ctx, sessionID, at)
	}
	return nil
}

func (m *MockSSOSessionRepository) RevokeAllByUserID(ctx context.Context, userID string, at time.Time) error {
	if m.RevokeAllByUserIDFunc != nil {
		return m.RevokeAllByUserIDFunc(ctx, userID, at)
	}
	return nil
}

func (m *MockSSOSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, username, verifyURL string) error
	SendWelcomeEmailFunc       func(ctx context.Context, email, username string) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, username, resetURL string) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, username, verifyURL string) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, username, verifyURL)
	}
	return nil
}

func (m *MockEmailService) SendWelcomeEmail(ctx context.Context, email, username string) error {
	if m.SendWelcomeEmailFunc != nil {
		return m.SendWelcomeEmailFunc(ctx, email, username)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, username, resetURL string) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, username, resetURL)
	}
	return nil
}
