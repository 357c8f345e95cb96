package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/keyline-id/keyline/internal/models"
	"github.com/keyline-id/keyline/internal/token"
)

// OAuthClientRepository defines the interface for OAuth client storage
type OAuthClientRepository interface {
	Create(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error)
	FindByID(ctx context.Context, id string) (*models.OAuthClient, error)
	FindByIDWithSecret(ctx context.Context, id string) (*models.OAuthClient, error)
	Update(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.OAuthClient, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// AuthorizationCodeRepository defines the interface for authorization code storage
type AuthorizationCodeRepository interface {
	Create(ctx context.Context, code *models.AuthorizationCode) (*models.AuthorizationCode, error)
	FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error)
	// MarkAsUsed atomically transitions a code from unused to used. It
	// returns models.ErrNotFound when the code is absent or already used;
	// under concurrent exchanges exactly one caller observes success.
	MarkAsUsed(ctx context.Context, code string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenRepository defines the interface for access and refresh token storage
type TokenRepository interface {
	StoreAccessToken(ctx context.Context, t *models.AccessToken) error
	StoreRefreshToken(ctx context.Context, t *models.RefreshToken) error
	FindAccessToken(ctx context.Context, tokenValue string) (*models.AccessToken, error)
	FindRefreshToken(ctx context.Context, tokenValue string) (*models.RefreshToken, error)
	// DeleteAccessToken drops the token's record so introspection no longer
	// recognizes it. Deleting an absent token is not an error.
	DeleteAccessToken(ctx context.Context, tokenValue string) error
	RevokeRefreshToken(ctx context.Context, tokenValue string) error
	RevokeAllUserTokens(ctx context.Context, userID string) error
	RevokeAllClientTokens(ctx context.Context, clientID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Default token lifetimes for the authorization-code grant.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	authorizationCodeTTL = 10 * time.Minute
)

var codeChallengeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{43,128}$`)

// OAuthService implements the authorization-code-with-PKCE and refresh-token
// grants for registered clients.
type OAuthService struct {
	clients    OAuthClientRepository
	codes      AuthorizationCodeRepository
	tokens     TokenRepository
	users      UserRepository
	signer     *token.Signer
	logger     *slog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewOAuthService creates a new OAuthService. Zero TTLs fall back to the
// defaults (1h access, 30d refresh).
func NewOAuthService(
	clients OAuthClientRepository,
	codes AuthorizationCodeRepository,
	tokens TokenRepository,
	users UserRepository,
	signer *token.Signer,
	logger *slog.Logger,
	accessTTL, refreshTTL time.Duration,
) *OAuthService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &OAuthService{
		clients:    clients,
		codes:      codes,
		tokens:     tokens,
		users:      users,
		signer:     signer,
		logger:     logger,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// randomToken returns n random bytes encoded URL-safe without padding.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RegisterClientInput is the client registration request
type RegisterClientInput struct {
	Name         string   `validate:"required,min=3,max=100"`
	Description  string   `validate:"max=500"`
	RedirectURIs []string `validate:"required,min=1"`
	Scopes       []string `validate:"required,min=1"`
	GrantTypes   []string `validate:"required,min=1,dive,oneof=authorization_code client_credentials refresh_token"`
}

// RegisterClient registers a new OAuth client with a generated id and a
// high-entropy secret. The secret is returned exactly once, here.
func (s *OAuthService) RegisterClient(ctx context.Context, input RegisterClientInput) (*models.OAuthClient, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	for _, uri := range input.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, err
		}
	}
	if err := validateScopes(input.Scopes); err != nil {
		return nil, err
	}

	secret, err := randomToken(32)
	if err != nil {
		s.logger.Error("failed to generate client secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	client, err := s.clients.Create(ctx, &models.OAuthClient{
		ID:           uuid.New().String(),
		Secret:       secret,
		Name:         input.Name,
		Description:  input.Description,
		RedirectURIs: input.RedirectURIs,
		Scopes:       input.Scopes,
		GrantTypes:   input.GrantTypes,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		s.logger.Error("failed to create oauth client", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("oauth client registered", slog.String("client_id", client.ID))
	return client, nil
}

// UpdateClientInput carries mutable client configuration; zero fields are
// left unchanged. Client id and secret are immutable once issued.
type UpdateClientInput struct {
	Name         string
	Description  string
	RedirectURIs []string
	Scopes       []string
}

// UpdateClient updates a client's mutable configuration.
func (s *OAuthService) UpdateClient(ctx context.Context, clientID string, input UpdateClientInput) (*models.OAuthClient, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load oauth client", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if input.Name != "" {
		if len(input.Name) < 3 || len(input.Name) > 100 {
			return nil, fmt.Errorf("client name must be 3-100 characters: %w", models.ErrBadRequest)
		}
		client.Name = input.Name
	}
	if input.Description != "" {
		client.Description = input.Description
	}
	if len(input.RedirectURIs) > 0 {
		for _, uri := range input.RedirectURIs {
			if err := validateRedirectURI(uri); err != nil {
				return nil, err
			}
		}
		client.RedirectURIs = input.RedirectURIs
	}
	if len(input.Scopes) > 0 {
		if err := validateScopes(input.Scopes); err != nil {
			return nil, err
		}
		client.Scopes = input.Scopes
	}
	client.UpdatedAt = time.Now()

	updated, err := s.clients.Update(ctx, client)
	if err != nil {
		s.logger.Error("failed to update oauth client", slog.String("client_id", clientID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("oauth client updated", slog.String("client_id", clientID))
	return updated, nil
}

// DeleteClient revokes all of the client's tokens and removes it.
func (s *OAuthService) DeleteClient(ctx context.Context, clientID string) error {
	exists, err := s.clients.Exists(ctx, clientID)
	if err != nil {
		s.logger.Error("failed to check oauth client existence", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !exists {
		return models.ErrNotFound
	}

	if err := s.tokens.RevokeAllClientTokens(ctx, clientID); err != nil {
		s.logger.Error("failed to revoke client tokens", slog.String("client_id", clientID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.clients.Delete(ctx, clientID); err != nil {
		s.logger.Error("failed to delete oauth client", slog.String("client_id", clientID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("oauth client deleted", slog.String("client_id", clientID))
	return nil
}

// GetClient retrieves a client without its secret.
func (s *OAuthService) GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load oauth client", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return client, nil
}

// ListClients lists all registered clients without secrets.
func (s *OAuthService) ListClients(ctx context.Context) ([]*models.OAuthClient, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		s.logger.Error("failed to list oauth clients", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return clients, nil
}

// CreateAuthorizationCodeInput is the consent-granted request
type CreateAuthorizationCodeInput struct {
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CreateAuthorizationCode issues a 10-minute single-use code after the user
// grants consent.
func (s *OAuthService) CreateAuthorizationCode(ctx context.Context, input CreateAuthorizationCodeInput) (*models.AuthorizationCode, error) {
	client, err := s.clients.FindByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.OAuthErrorf(models.ErrInvalidClient, "unknown client")
		}
		s.logger.Error("failed to load oauth client", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !client.HasRedirectURI(input.RedirectURI) {
		return nil, models.OAuthErrorf(models.ErrInvalidRequest, "redirect_uri not registered for client")
	}
	if len(input.Scopes) == 0 || !client.AllowsScopes(input.Scopes) {
		return nil, models.OAuthErrorf(models.ErrInvalidScope, "requested scopes exceed client grant")
	}
	if !client.AllowsGrantType(models.GrantAuthorizationCode) {
		return nil, models.OAuthErrorf(models.ErrUnsupportedGrantType, "authorization_code grant not allowed for client")
	}

	if input.CodeChallenge != "" {
		if input.CodeChallengeMethod != models.CodeChallengeS256 && input.CodeChallengeMethod != models.CodeChallengePlain {
			return nil, models.OAuthErrorf(models.ErrInvalidRequest, "invalid code_challenge_method")
		}
		if !codeChallengeRegex.MatchString(input.CodeChallenge) {
			return nil, models.OAuthErrorf(models.ErrInvalidRequest, "code_challenge must be 43-128 URL-safe characters")
		}
	} else if input.CodeChallengeMethod != "" {
		return nil, models.OAuthErrorf(models.ErrInvalidRequest, "code_challenge is required with code_challenge_method")
	}

	codeValue, err := randomToken(32)
	if err != nil {
		s.logger.Error("failed to generate authorization code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	authCode, err := s.codes.Create(ctx, &models.AuthorizationCode{
		Code:                codeValue,
		ClientID:            input.ClientID,
		UserID:              input.UserID,
		RedirectURI:         input.RedirectURI,
		Scopes:              input.Scopes,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
		ExpiresAt:           now.Add(authorizationCodeTTL),
		CreatedAt:           now,
		Used:                false,
	})
	if err != nil {
		s.logger.Error("failed to store authorization code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("authorization code issued",
		slog.String("client_id", input.ClientID),
		slog.String("user_id", input.UserID))
	return authCode, nil
}

// authenticateClient loads the client and compares the presented secret in
// constant time.
func (s *OAuthService) authenticateClient(ctx context.Context, clientID, clientSecret string) (*models.OAuthClient, error) {
	client, err := s.clients.FindByIDWithSecret(ctx, clientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.OAuthErrorf(models.ErrInvalidClient, "unknown client")
		}
		s.logger.Error("failed to load oauth client", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		s.logger.Info("client authentication failed", slog.String("client_id", clientID))
		return nil, models.OAuthErrorf(models.ErrInvalidClient, "client secret mismatch")
	}

	return client, nil
}

// verifyPKCE checks the code verifier against the stored challenge.
func verifyPKCE(authCode *models.AuthorizationCode, codeVerifier string) bool {
	switch authCode.CodeChallengeMethod {
	case models.CodeChallengeS256:
		sum := sha256.Sum256([]byte(codeVerifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(derived), []byte(authCode.CodeChallenge)) == 1
	case models.CodeChallengePlain, "":
		return subtle.ConstantTimeCompare([]byte(codeVerifier), []byte(authCode.CodeChallenge)) == 1
	default:
		return false
	}
}

// ExchangeAuthorizationCodeInput is the token endpoint request for the
// authorization_code grant
type ExchangeAuthorizationCodeInput struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}

// ExchangeAuthorizationCode redeems a code for an access/refresh token pair.
// The code is marked used atomically before any token is minted; of two
// concurrent exchanges of the same code exactly one succeeds.
func (s *OAuthService) ExchangeAuthorizationCode(ctx context.Context, input ExchangeAuthorizationCodeInput) (*models.AccessToken, *models.RefreshToken, error) {
	client, err := s.authenticateClient(ctx, input.ClientID, input.ClientSecret)
	if err != nil {
		return nil, nil, err
	}

	authCode, err := s.codes.FindByCode(ctx, input.Code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "unknown authorization code")
		}
		s.logger.Error("failed to load authorization code", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if authCode.ClientID != client.ID {
		return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "code issued to another client")
	}
	if authCode.Used {
		s.logger.Warn("authorization code replay detected",
			slog.String("client_id", client.ID))
		return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "code already used")
	}
	if authCode.Expired(time.Now()) {
		return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "code expired")
	}
	if authCode.RedirectURI != input.RedirectURI {
		return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "redirect_uri mismatch")
	}

	if authCode.CodeChallenge != "" {
		if input.CodeVerifier == "" {
			return nil, nil, models.OAuthErrorf(models.ErrInvalidRequest, "code_verifier is required")
		}
		if !verifyPKCE(authCode, input.CodeVerifier) {
			return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "code_verifier mismatch")
		}
	}

	// The single-use transition happens before minting: losing this race
	// means another exchange already redeemed the code.
	if err := s.codes.MarkAsUsed(ctx, authCode.Code); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("authorization code lost single-use race",
				slog.String("client_id", client.ID))
			return nil, nil, models.OAuthErrorf(models.ErrInvalidGrant, "code already used")
		}
		s.logger.Error("failed to mark authorization code used", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	accessToken, err := s.mintAccessToken(ctx, client.ID, authCode.UserID, authCode.Scopes)
	if err != nil {
		return nil, nil, err
	}

	refreshValue, err := randomToken(64)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	now := time.Now()
	refreshToken := &models.RefreshToken{
		Token:     refreshValue,
		ClientID:  client.ID,
		UserID:    authCode.UserID,
		Scopes:    authCode.Scopes,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
		Revoked:   false,
	}
	if err := s.tokens.StoreRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Error("failed to store refresh token", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	s.logger.Info("authorization code exchanged",
		slog.String("client_id", client.ID),
		slog.String("user_id", authCode.UserID))
	return accessToken, refreshToken, nil
}

// RefreshAccessToken mints a new access token from a valid refresh token.
// The refresh token itself is not rotated.
func (s *OAuthService) RefreshAccessToken(ctx context.Context, refreshValue, clientID, clientSecret string) (*models.AccessToken, error) {
	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	if !client.AllowsGrantType(models.GrantRefreshToken) {
		return nil, models.OAuthErrorf(models.ErrUnsupportedGrantType, "refresh_token grant not allowed for client")
	}

	refreshToken, err := s.tokens.FindRefreshToken(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.OAuthErrorf(models.ErrInvalidGrant, "unknown refresh token")
		}
		s.logger.Error("failed to load refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if refreshToken.ClientID != client.ID {
		return nil, models.OAuthErrorf(models.ErrInvalidGrant, "token issued to another client")
	}
	if !refreshToken.Valid(time.Now()) {
		return nil, models.OAuthErrorf(models.ErrInvalidGrant, "refresh token expired or revoked")
	}

	accessToken, err := s.mintAccessToken(ctx, client.ID, refreshToken.UserID, refreshToken.Scopes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("access token refreshed",
		slog.String("client_id", client.ID),
		slog.String("user_id", refreshToken.UserID))
	return accessToken, nil
}

// mintAccessToken signs and stores a scoped access token for the user.
func (s *OAuthService) mintAccessToken(ctx context.Context, clientID, userID string, scopes []string) (*models.AccessToken, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.OAuthErrorf(models.ErrInvalidGrant, "grant user no longer exists")
		}
		s.logger.Error("failed to load user for token minting", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	signed, err := s.signer.SignSession(user, "", s.accessTTL)
	if err != nil {
		s.logger.Error("failed to sign access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	accessToken := &models.AccessToken{
		Token:     signed,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.accessTTL),
		CreatedAt: now,
	}
	if err := s.tokens.StoreAccessToken(ctx, accessToken); err != nil {
		s.logger.Error("failed to store access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return accessToken, nil
}

// TokenIntrospection is the state of an access token at a point in time.
// Zero value means inactive.
type TokenIntrospection struct {
	Active    bool
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

// IntrospectAccessToken reports whether an access token is live. A token
// whose signature does not verify, whose stored record is gone, or which has
// expired is inactive, not an error.
func (s *OAuthService) IntrospectAccessToken(ctx context.Context, tokenValue string) (*TokenIntrospection, error) {
	if _, err := s.signer.VerifySession(tokenValue); err != nil {
		return &TokenIntrospection{}, nil
	}

	stored, err := s.tokens.FindAccessToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &TokenIntrospection{}, nil
		}
		s.logger.Error("failed to load access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !stored.ExpiresAt.After(time.Now()) {
		return &TokenIntrospection{}, nil
	}

	return &TokenIntrospection{
		Active:    true,
		ClientID:  stored.ClientID,
		UserID:    stored.UserID,
		Scopes:    stored.Scopes,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// RevokeAccessToken drops the token's server-side record so introspection
// reports it inactive. Revocation is one-way and idempotent; the signed JWT
// itself remains well-formed until it expires.
func (s *OAuthService) RevokeAccessToken(ctx context.Context, tokenValue string) error {
	if err := s.tokens.DeleteAccessToken(ctx, tokenValue); err != nil {
		s.logger.Error("failed to revoke access token", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// RevokeRefreshToken revokes a single refresh token. Revocation is one-way
// and idempotent.
func (s *OAuthService) RevokeRefreshToken(ctx context.Context, refreshValue string) error {
	if err := s.tokens.RevokeRefreshToken(ctx, refreshValue); err != nil {
		s.logger.Error("failed to revoke refresh token", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// RevokeAllUserTokens revokes every refresh token issued to a user and drops
// the user's access-token records.
func (s *OAuthService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		s.logger.Error("failed to revoke user tokens", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("all user tokens revoked", slog.String("user_id", userID))
	return nil
}

// RevokeAllClientTokens revokes every refresh token issued to a client and
// drops the client's access-token records.
func (s *OAuthService) RevokeAllClientTokens(ctx context.Context, clientID string) error {
	if err := s.tokens.RevokeAllClientTokens(ctx, clientID); err != nil {
		s.logger.Error("failed to revoke client tokens", slog.String("client_id", clientID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("all client tokens revoked", slog.String("client_id", clientID))
	return nil
}
