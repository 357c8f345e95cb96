package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyline-id/keyline/internal/models"
	"github.com/keyline-id/keyline/internal/token"
)

func newTestOAuthService(
	clients *MockOAuthClientRepository,
	codes *MockAuthorizationCodeRepository,
	tokens *MockTokenRepository,
	users *MockUserRepository,
) *OAuthService {
	return NewOAuthService(clients, codes, tokens, users, token.NewSigner(testSecret), slog.Default(), 0, 0)
}

// pkceChallenge derives the S256 challenge for a verifier the way a client
// would.
func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk_verifier"

// ============================================================================
// Client Registration Tests
// ============================================================================

func TestOAuthService_RegisterClient_Success(t *testing.T) {
	var created *models.OAuthClient
	clients := &MockOAuthClientRepository{
		CreateFunc: func(ctx context.Context, client *models.OAuthClient) (*models.OAuthClient, error) {
			created = client
			return client, nil
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	client, err := service.RegisterClient(context.Background(), RegisterClientInput{
		Name:         "My Application",
		RedirectURIs: []string{"https://app.example.com/callback"},
		Scopes:       []string{"openid", "profile"},
		GrantTypes:   []string{models.GrantAuthorizationCode, models.GrantRefreshToken},
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, client.ID)
	assert.NotEmpty(t, client.Secret, "secret is returned on registration")
	assert.GreaterOrEqual(t, len(client.Secret), 40, "secret must carry 32 bytes of entropy")
}

func TestOAuthService_RegisterClient_InvalidInput(t *testing.T) {
	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	valid := RegisterClientInput{
		Name:         "My Application",
		RedirectURIs: []string{"https://app.example.com/callback"},
		Scopes:       []string{"openid"},
		GrantTypes:   []string{models.GrantAuthorizationCode},
	}

	tests := []struct {
		name   string
		mutate func(in *RegisterClientInput)
	}{
		{"name too short", func(in *RegisterClientInput) { in.Name = "ab" }},
		{"no redirect uris", func(in *RegisterClientInput) { in.RedirectURIs = nil }},
		{"relative redirect uri", func(in *RegisterClientInput) { in.RedirectURIs = []string{"/callback"} }},
		{"plain http non-localhost", func(in *RegisterClientInput) { in.RedirectURIs = []string{"http://app.example.com/cb"} }},
		{"redirect uri with fragment", func(in *RegisterClientInput) { in.RedirectURIs = []string{"https://app.example.com/cb#frag"} }},
		{"unknown grant type", func(in *RegisterClientInput) { in.GrantTypes = []string{"implicit"} }},
		{"malformed scope", func(in *RegisterClientInput) { in.Scopes = []string{"open id"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)
			_, err := service.RegisterClient(context.Background(), input)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}

func TestOAuthService_RegisterClient_LocalhostHTTPAllowed(t *testing.T) {
	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	_, err := service.RegisterClient(context.Background(), RegisterClientInput{
		Name:         "Dev Tool",
		RedirectURIs: []string{"http://localhost:8080/callback", "http://127.0.0.1:3000/cb"},
		Scopes:       []string{"openid"},
		GrantTypes:   []string{models.GrantAuthorizationCode},
	})

	assert.NoError(t, err)
}

func TestOAuthService_UpdateClient_PartialUpdate(t *testing.T) {
	stored := NewTestClient("client123", "secret")

	clients := &MockOAuthClientRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			return stored, nil
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	updated, err := service.UpdateClient(context.Background(), "client123", UpdateClientInput{
		Name: "Renamed Application",
	})

	require.NoError(t, err)
	assert.Equal(t, "Renamed Application", updated.Name)
	assert.Equal(t, []string{"https://app.example.com/callback"}, updated.RedirectURIs, "omitted fields stay unchanged")
}

func TestOAuthService_UpdateClient_NotFound(t *testing.T) {
	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	_, err := service.UpdateClient(context.Background(), "missing", UpdateClientInput{Name: "Whatever"})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOAuthService_DeleteClient_RevokesTokensFirst(t *testing.T) {
	var order []string
	clients := &MockOAuthClientRepository{
		ExistsFunc: func(ctx context.Context, id string) (bool, error) {
			return true, nil
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			order = append(order, "delete")
			return nil
		},
	}
	tokens := &MockTokenRepository{
		RevokeAllClientTokensFunc: func(ctx context.Context, clientID string) error {
			order = append(order, "revoke")
			return nil
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, tokens, &MockUserRepository{})

	err := service.DeleteClient(context.Background(), "client123")

	require.NoError(t, err)
	assert.Equal(t, []string{"revoke", "delete"}, order)
}

// ============================================================================
// Authorization Code Issuance Tests
// ============================================================================

func codeInput() CreateAuthorizationCodeInput {
	return CreateAuthorizationCodeInput{
		ClientID:            "client123",
		UserID:              "user123",
		RedirectURI:         "https://app.example.com/callback",
		Scopes:              []string{"openid"},
		CodeChallenge:       pkceChallenge(testVerifier),
		CodeChallengeMethod: models.CodeChallengeS256,
	}
}

func TestOAuthService_CreateAuthorizationCode_Success(t *testing.T) {
	stored := NewTestClient("client123", "secret")
	clients := &MockOAuthClientRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			return stored, nil
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	authCode, err := service.CreateAuthorizationCode(context.Background(), codeInput())

	require.NoError(t, err)
	assert.NotEmpty(t, authCode.Code)
	assert.False(t, authCode.Used)
	ttl := time.Until(authCode.ExpiresAt)
	assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 5, "codes live for ten minutes")
}

func TestOAuthService_CreateAuthorizationCode_Rejections(t *testing.T) {
	stored := NewTestClient("client123", "secret")
	clients := &MockOAuthClientRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			if id == "client123" {
				return stored, nil
			}
			return nil, models.ErrNotFound
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	tests := []struct {
		name    string
		mutate  func(in *CreateAuthorizationCodeInput)
		wantErr error
	}{
		{"unknown client", func(in *CreateAuthorizationCodeInput) { in.ClientID = "ghost" }, models.ErrInvalidClient},
		{"unregistered redirect", func(in *CreateAuthorizationCodeInput) { in.RedirectURI = "https://evil.example.com/cb" }, models.ErrInvalidRequest},
		{"scope not granted", func(in *CreateAuthorizationCodeInput) { in.Scopes = []string{"admin"} }, models.ErrInvalidScope},
		{"empty scopes", func(in *CreateAuthorizationCodeInput) { in.Scopes = nil }, models.ErrInvalidScope},
		{"bad challenge method", func(in *CreateAuthorizationCodeInput) { in.CodeChallengeMethod = "S512" }, models.ErrInvalidRequest},
		{"challenge too short", func(in *CreateAuthorizationCodeInput) { in.CodeChallenge = "short" }, models.ErrInvalidRequest},
		{"method without challenge", func(in *CreateAuthorizationCodeInput) {
			in.CodeChallenge = ""
			in.CodeChallengeMethod = models.CodeChallengeS256
		}, models.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := codeInput()
			tt.mutate(&input)
			_, err := service.CreateAuthorizationCode(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOAuthService_CreateAuthorizationCode_GrantNotAllowed(t *testing.T) {
	stored := NewTestClient("client123", "secret")
	stored.GrantTypes = []string{models.GrantClientCredentials}

	clients := &MockOAuthClientRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			return stored, nil
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	_, err := service.CreateAuthorizationCode(context.Background(), codeInput())

	assert.ErrorIs(t, err, models.ErrUnsupportedGrantType)
}

// ============================================================================
// Code Exchange Tests
// ============================================================================

// codeStore is a mutex-guarded single-code store so exchange tests exercise
// the real unused-to-used transition contract.
type codeStore struct {
	mu   sync.Mutex
	code *models.AuthorizationCode
}

func (s *codeStore) repo() *MockAuthorizationCodeRepository {
	return &MockAuthorizationCodeRepository{
		FindByCodeFunc: func(ctx context.Context, code string) (*models.AuthorizationCode, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.code == nil || s.code.Code != code {
				return nil, models.ErrNotFound
			}
			copied := *s.code
			return &copied, nil
		},
		MarkAsUsedFunc: func(ctx context.Context, code string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.code == nil || s.code.Code != code || s.code.Used {
				return models.ErrNotFound
			}
			s.code.Used = true
			return nil
		},
	}
}

func exchangeFixture(t *testing.T, store *codeStore) (*OAuthService, *MockTokenRepository) {
	t.Helper()

	client := NewTestClient("client123", "topsecret")
	clients := &MockOAuthClientRepository{
		FindByIDWithSecretFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			if id == client.ID {
				return client, nil
			}
			return nil, models.ErrNotFound
		},
	}

	users := &MockUserRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return NewTestUser(id, "user@example.com", "johndoe"), nil
		},
	}

	tokens := &MockTokenRepository{}
	return newTestOAuthService(clients, store.repo(), tokens, users), tokens
}

func unusedCode() *models.AuthorizationCode {
	now := time.Now()
	return &models.AuthorizationCode{
		Code:                "code-abc",
		ClientID:            "client123",
		UserID:              "user123",
		RedirectURI:         "https://app.example.com/callback",
		Scopes:              []string{"openid"},
		CodeChallenge:       pkceChallenge(testVerifier),
		CodeChallengeMethod: models.CodeChallengeS256,
		ExpiresAt:           now.Add(10 * time.Minute),
		CreatedAt:           now,
	}
}

func exchangeInput() ExchangeAuthorizationCodeInput {
	return ExchangeAuthorizationCodeInput{
		Code:         "code-abc",
		ClientID:     "client123",
		ClientSecret: "topsecret",
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: testVerifier,
	}
}

func TestOAuthService_ExchangeAuthorizationCode_Success(t *testing.T) {
	store := &codeStore{code: unusedCode()}
	service, tokens := exchangeFixture(t, store)

	var storedAccess *models.AccessToken
	var storedRefresh *models.RefreshToken
	tokens.StoreAccessTokenFunc = func(ctx context.Context, tok *models.AccessToken) error {
		storedAccess = tok
		return nil
	}
	tokens.StoreRefreshTokenFunc = func(ctx context.Context, tok *models.RefreshToken) error {
		storedRefresh = tok
		return nil
	}

	accessToken, refreshToken, err := service.ExchangeAuthorizationCode(context.Background(), exchangeInput())

	require.NoError(t, err)
	assert.True(t, store.code.Used, "the code must be consumed")
	assert.Equal(t, accessToken, storedAccess)
	assert.Equal(t, refreshToken, storedRefresh)
	assert.Equal(t, []string{"openid"}, accessToken.Scopes)
	assert.Equal(t, "user123", refreshToken.UserID)
	assert.Equal(t, 3, len(strings.Split(accessToken.Token, ".")), "access token is a signed JWT")

	claims, err := token.NewSigner(testSecret).VerifySession(accessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, "user123", claims.Subject)
}

func TestOAuthService_ExchangeAuthorizationCode_Replay(t *testing.T) {
	store := &codeStore{code: unusedCode()}
	service, _ := exchangeFixture(t, store)

	_, _, err := service.ExchangeAuthorizationCode(context.Background(), exchangeInput())
	require.NoError(t, err)

	_, _, err = service.ExchangeAuthorizationCode(context.Background(), exchangeInput())
	assert.ErrorIs(t, err, models.ErrInvalidGrant, "a consumed code must never be redeemable again")
}

func TestOAuthService_ExchangeAuthorizationCode_ConcurrentSingleUse(t *testing.T) {
	store := &codeStore{code: unusedCode()}
	service, _ := exchangeFixture(t, store)

	const attempts = 8
	results := make(chan error, attempts)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, _, err := service.ExchangeAuthorizationCode(context.Background(), exchangeInput())
			results <- err
		}()
	}
	start.Done()

	successes := 0
	for i := 0; i < attempts; i++ {
		err := <-results
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidGrant)
		}
	}

	assert.Equal(t, 1, successes, "exactly one concurrent exchange may win the code")
}

func TestOAuthService_ExchangeAuthorizationCode_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		code    func() *models.AuthorizationCode
		mutate  func(in *ExchangeAuthorizationCodeInput)
		wantErr error
	}{
		{
			name:    "wrong client secret",
			code:    unusedCode,
			mutate:  func(in *ExchangeAuthorizationCodeInput) { in.ClientSecret = "wrong" },
			wantErr: models.ErrInvalidClient,
		},
		{
			name:    "unknown client",
			code:    unusedCode,
			mutate:  func(in *ExchangeAuthorizationCodeInput) { in.ClientID = "ghost" },
			wantErr: models.ErrInvalidClient,
		},
		{
			name:    "unknown code",
			code:    unusedCode,
			mutate:  func(in *ExchangeAuthorizationCodeInput) { in.Code = "ghost-code" },
			wantErr: models.ErrInvalidGrant,
		},
		{
			name: "code issued to another client",
			code: func() *models.AuthorizationCode {
				c := unusedCode()
				c.ClientID = "other-client"
				return c
			},
			mutate:  func(in *ExchangeAuthorizationCodeInput) {},
			wantErr: models.ErrInvalidGrant,
		},
		{
			name: "expired code",
			code: func() *models.AuthorizationCode {
				c := unusedCode()
				c.ExpiresAt = time.Now().Add(-time.Second)
				return c
			},
			mutate:  func(in *ExchangeAuthorizationCodeInput) {},
			wantErr: models.ErrInvalidGrant,
		},
		{
			name:    "redirect uri mismatch",
			code:    unusedCode,
			mutate:  func(in *ExchangeAuthorizationCodeInput) { in.RedirectURI = "https://app.example.com/other" },
			wantErr: models.ErrInvalidGrant,
		},
		{
			name:    "missing code verifier",
			code:    unusedCode,
			mutate:  func(in *ExchangeAuthorizationCodeInput) { in.CodeVerifier = "" },
			wantErr: models.ErrInvalidRequest,
		},
		{
			name:    "wrong code verifier",
			code:    unusedCode,
			mutate:  func(in *ExchangeAuthorizationCodeInput) { in.CodeVerifier = "completely-different-verifier-value-here" },
			wantErr: models.ErrInvalidGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &codeStore{code: tt.code()}
			service, _ := exchangeFixture(t, store)

			input := exchangeInput()
			tt.mutate(&input)

			_, _, err := service.ExchangeAuthorizationCode(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOAuthService_ExchangeAuthorizationCode_RejectionLeavesCodeUnused(t *testing.T) {
	store := &codeStore{code: unusedCode()}
	service, _ := exchangeFixture(t, store)

	input := exchangeInput()
	input.CodeVerifier = "completely-different-verifier-value-here"

	_, _, err := service.ExchangeAuthorizationCode(context.Background(), input)
	require.ErrorIs(t, err, models.ErrInvalidGrant)
	assert.False(t, store.code.Used, "a failed PKCE check must not consume the code")

	_, _, err = service.ExchangeAuthorizationCode(context.Background(), exchangeInput())
	assert.NoError(t, err, "the code stays redeemable after a rejected attempt")
}

func TestOAuthService_ExchangeAuthorizationCode_PlainPKCE(t *testing.T) {
	code := unusedCode()
	code.CodeChallenge = "plain-challenge-value-that-is-long-enough-43ch"
	code.CodeChallengeMethod = models.CodeChallengePlain
	store := &codeStore{code: code}
	service, _ := exchangeFixture(t, store)

	input := exchangeInput()
	input.CodeVerifier = "plain-challenge-value-that-is-long-enough-43ch"

	_, _, err := service.ExchangeAuthorizationCode(context.Background(), input)
	assert.NoError(t, err)
}

func TestOAuthService_ExchangeAuthorizationCode_NoPKCE(t *testing.T) {
	code := unusedCode()
	code.CodeChallenge = ""
	code.CodeChallengeMethod = ""
	store := &codeStore{code: code}
	service, _ := exchangeFixture(t, store)

	input := exchangeInput()
	input.CodeVerifier = ""

	_, _, err := service.ExchangeAuthorizationCode(context.Background(), input)
	assert.NoError(t, err, "PKCE is enforced only when a challenge was recorded")
}

func TestOAuthService_ExchangeAuthorizationCode_DeletedUser(t *testing.T) {
	store := &codeStore{code: unusedCode()}

	client := NewTestClient("client123", "topsecret")
	clients := &MockOAuthClientRepository{
		FindByIDWithSecretFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			return client, nil
		},
	}

	service := newTestOAuthService(clients, store.repo(), &MockTokenRepository{}, &MockUserRepository{})

	_, _, err := service.ExchangeAuthorizationCode(context.Background(), exchangeInput())

	assert.ErrorIs(t, err, models.ErrInvalidGrant, "a grant for a vanished user is invalid")
}

// ============================================================================
// Refresh Grant Tests
// ============================================================================

func validRefreshToken() *models.RefreshToken {
	now := time.Now()
	return &models.RefreshToken{
		Token:     "refresh-abc",
		ClientID:  "client123",
		UserID:    "user123",
		Scopes:    []string{"openid"},
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now.Add(-time.Hour),
	}
}

func refreshFixture(stored *models.RefreshToken) (*OAuthService, *MockTokenRepository) {
	client := NewTestClient("client123", "topsecret")
	clients := &MockOAuthClientRepository{
		FindByIDWithSecretFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			if id == client.ID {
				return client, nil
			}
			return nil, models.ErrNotFound
		},
	}

	users := &MockUserRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return NewTestUser(id, "user@example.com", "johndoe"), nil
		},
	}

	tokens := &MockTokenRepository{
		FindRefreshTokenFunc: func(ctx context.Context, tokenValue string) (*models.RefreshToken, error) {
			if stored != nil && stored.Token == tokenValue {
				return stored, nil
			}
			return nil, models.ErrNotFound
		},
	}

	return newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, tokens, users), tokens
}

func TestOAuthService_RefreshAccessToken_Success(t *testing.T) {
	stored := validRefreshToken()
	service, tokens := refreshFixture(stored)

	refreshStored := false
	tokens.StoreRefreshTokenFunc = func(ctx context.Context, tok *models.RefreshToken) error {
		refreshStored = true
		return nil
	}

	accessToken, err := service.RefreshAccessToken(context.Background(), "refresh-abc", "client123", "topsecret")

	require.NoError(t, err)
	assert.Equal(t, []string{"openid"}, accessToken.Scopes, "scopes carry over from the original grant")
	assert.Equal(t, "user123", accessToken.UserID)
	assert.False(t, refreshStored, "the refresh token is not rotated")
}

func TestOAuthService_RefreshAccessToken_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		stored  func() *models.RefreshToken
		token   string
		client  string
		secret  string
		wantErr error
	}{
		{"wrong secret", validRefreshToken, "refresh-abc", "client123", "wrong", models.ErrInvalidClient},
		{"unknown token", validRefreshToken, "ghost", "client123", "topsecret", models.ErrInvalidGrant},
		{
			"expired token",
			func() *models.RefreshToken {
				tok := validRefreshToken()
				tok.ExpiresAt = time.Now().Add(-time.Second)
				return tok
			},
			"refresh-abc", "client123", "topsecret", models.ErrInvalidGrant,
		},
		{
			"revoked token",
			func() *models.RefreshToken {
				tok := validRefreshToken()
				tok.Revoked = true
				return tok
			},
			"refresh-abc", "client123", "topsecret", models.ErrInvalidGrant,
		},
		{
			"token issued to another client",
			func() *models.RefreshToken {
				tok := validRefreshToken()
				tok.ClientID = "other-client"
				return tok
			},
			"refresh-abc", "client123", "topsecret", models.ErrInvalidGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := refreshFixture(tt.stored())
			_, err := service.RefreshAccessToken(context.Background(), tt.token, tt.client, tt.secret)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOAuthService_RefreshAccessToken_GrantNotAllowed(t *testing.T) {
	client := NewTestClient("client123", "topsecret")
	client.GrantTypes = []string{models.GrantAuthorizationCode}

	clients := &MockOAuthClientRepository{
		FindByIDWithSecretFunc: func(ctx context.Context, id string) (*models.OAuthClient, error) {
			return client, nil
		},
	}

	service := newTestOAuthService(clients, &MockAuthorizationCodeRepository{}, &MockTokenRepository{}, &MockUserRepository{})

	_, err := service.RefreshAccessToken(context.Background(), "refresh-abc", "client123", "topsecret")

	assert.ErrorIs(t, err, models.ErrUnsupportedGrantType)
}

// ============================================================================
// Revocation Tests
// ============================================================================

func TestOAuthService_RevokeAllUserTokens(t *testing.T) {
	var revokedUser string
	tokens := &MockTokenRepository{
		RevokeAllUserTokensFunc: func(ctx context.Context, userID string) error {
			revokedUser = userID
			return nil
		},
	}

	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, tokens, &MockUserRepository{})

	err := service.RevokeAllUserTokens(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, "user123", revokedUser)
}

// ============================================================================
// Access Token Introspection Tests
// ============================================================================

// signedAccessToken mints a JWT the way the exchange path does and returns it
// with its stored record.
func signedAccessToken(t *testing.T, ttl time.Duration) (string, *models.AccessToken) {
	t.Helper()

	user := NewTestUser("user123", "user@example.com", "johndoe")
	signed, err := token.NewSigner(testSecret).SignSession(user, "", time.Hour)
	require.NoError(t, err)

	now := time.Now()
	return signed, &models.AccessToken{
		Token:     signed,
		ClientID:  "client123",
		UserID:    "user123",
		Scopes:    []string{"openid"},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func TestOAuthService_IntrospectAccessToken_Active(t *testing.T) {
	signed, stored := signedAccessToken(t, time.Hour)

	tokens := &MockTokenRepository{
		FindAccessTokenFunc: func(ctx context.Context, tokenValue string) (*models.AccessToken, error) {
			if tokenValue == stored.Token {
				return stored, nil
			}
			return nil, models.ErrNotFound
		},
	}

	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, tokens, &MockUserRepository{})

	info, err := service.IntrospectAccessToken(context.Background(), signed)

	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "client123", info.ClientID)
	assert.Equal(t, "user123", info.UserID)
	assert.Equal(t, []string{"openid"}, info.Scopes)
}

func TestOAuthService_IntrospectAccessToken_Inactive(t *testing.T) {
	signed, _ := signedAccessToken(t, time.Hour)
	_, expired := signedAccessToken(t, -time.Minute)

	tests := []struct {
		name       string
		tokenValue string
		stored     *models.AccessToken
	}{
		{"unverifiable token", "not-a-jwt", nil},
		{"unknown to the store", signed, nil},
		{"expired record", expired.Token, expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &MockTokenRepository{
				FindAccessTokenFunc: func(ctx context.Context, tokenValue string) (*models.AccessToken, error) {
					if tt.stored != nil && tokenValue == tt.stored.Token {
						return tt.stored, nil
					}
					return nil, models.ErrNotFound
				},
			}

			service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, tokens, &MockUserRepository{})

			info, err := service.IntrospectAccessToken(context.Background(), tt.tokenValue)

			require.NoError(t, err, "an inactive token is a result, not an error")
			assert.False(t, info.Active)
		})
	}
}

func TestOAuthService_RevokeAccessToken_MakesIntrospectionInactive(t *testing.T) {
	signed, stored := signedAccessToken(t, time.Hour)

	records := map[string]*models.AccessToken{signed: stored}
	tokens := &MockTokenRepository{
		FindAccessTokenFunc: func(ctx context.Context, tokenValue string) (*models.AccessToken, error) {
			if rec, ok := records[tokenValue]; ok {
				return rec, nil
			}
			return nil, models.ErrNotFound
		},
		DeleteAccessTokenFunc: func(ctx context.Context, tokenValue string) error {
			delete(records, tokenValue)
			return nil
		},
	}

	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, tokens, &MockUserRepository{})

	info, err := service.IntrospectAccessToken(context.Background(), signed)
	require.NoError(t, err)
	require.True(t, info.Active)

	require.NoError(t, service.RevokeAccessToken(context.Background(), signed))

	info, err = service.IntrospectAccessToken(context.Background(), signed)
	require.NoError(t, err)
	assert.False(t, info.Active, "a revoked token must not introspect as active")

	assert.NoError(t, service.RevokeAccessToken(context.Background(), signed), "revocation is idempotent")
}

func TestOAuthService_RevokeRefreshToken_Idempotent(t *testing.T) {
	calls := 0
	tokens := &MockTokenRepository{
		RevokeRefreshTokenFunc: func(ctx context.Context, tokenValue string) error {
			calls++
			return nil
		},
	}

	service := newTestOAuthService(&MockOAuthClientRepository{}, &MockAuthorizationCodeRepository{}, tokens, &MockUserRepository{})

	require.NoError(t, service.RevokeRefreshToken(context.Background(), "refresh-abc"))
	require.NoError(t, service.RevokeRefreshToken(context.Background(), "refresh-abc"))
	assert.Equal(t, 2, calls)
}
