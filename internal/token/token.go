package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keyline-id/keyline/internal/models"
)

// Verification failures, in the codec's closed vocabulary. Anything that is
// not a well-formed 3-segment token maps to ErrMalformed; a tampered header,
// payload or signature maps to ErrSignatureInvalid regardless of expiry.
var (
	ErrMalformed        = errors.New("invalid token format")
	ErrSignatureInvalid = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// Signer produces and consumes HMAC-SHA256 compact tokens. One codec serves
// both session JWTs and verification tokens; the claim shape is chosen by the
// caller, not by the codec.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer around a shared symmetric secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// SessionClaims is the payload shape of session and access tokens.
type SessionClaims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	SessionID string `json:"sessionId,omitempty"`
	jwt.RegisteredClaims
}

// SignSession issues a signed session token for the user. sessionID may be
// empty for tokens not bound to a tracked SSO session (OAuth access tokens).
func (s *Signer) SignSession(user *models.User, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &SessionClaims{
		Email:     user.Email,
		Username:  user.Username,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return s.sign(claims)
}

// VerifySession verifies signature and expiry and returns the session claims.
func (s *Signer) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Signer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Signer) parse(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}

// ValidFormat reports whether the token has the compact 3-segment shape. It
// performs no cryptographic checks.
func ValidFormat(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
