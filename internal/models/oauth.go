package models

import (
	"time"
)

// OAuth 2.0 grant types supported by registered clients.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// OAuthClient is a registered third-party application. ID and Secret are
// immutable once issued; the rest of the configuration is mutable.
type OAuthClient struct {
	ID           string
	Secret       string // empty unless loaded via FindByIDWithSecret
	Name         string
	Description  string
	RedirectURIs []string
	Scopes       []string
	GrantTypes   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRedirectURI reports whether uri is in the client's whitelist.
func (c *OAuthClient) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowsScopes reports whether every requested scope is in the client's
// allowed set.
func (c *OAuthClient) AllowsScopes(requested []string) bool {
	allowed := make(map[string]bool, len(c.Scopes))
	for _, s := range c.Scopes {
		allowed[s] = true
	}
	for _, s := range requested {
		if !allowed[s] {
			return false
		}
	}
	return true
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *OAuthClient) AllowsGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// PKCE code challenge methods (RFC 7636)
const (
	CodeChallengeS256  = "S256"
	CodeChallengePlain = "plain"
)

// AuthorizationCode is a one-time credential. It transitions unused -> used
// exactly once; expiry is checked at exchange time, not stored as a state.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string // empty when the client did not use PKCE
	CodeChallengeMethod string // "S256" or "plain"
	ExpiresAt           time.Time
	CreatedAt           time.Time
	Used                bool
}

// Expired reports whether the code is past its expiry at the given instant.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// AccessToken is a signed JWT scoped to a client grant.
type AccessToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken is a long-lived random credential. Revocation is one-way.
type RefreshToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Valid reports whether the refresh token is neither revoked nor expired.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
