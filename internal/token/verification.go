package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keyline-id/keyline/internal/models"
)

// VerificationType discriminates purpose-bound tokens.
type VerificationType string

const (
	TypeEmailVerification VerificationType = "email_verification"
	TypePasswordReset     VerificationType = "password_reset"
)

// Default lifetimes for verification tokens.
const (
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour
)

// VerificationClaims is the payload of email-verification and password-reset
// tokens. Validity is entirely a function of signature, expiry and type; no
// server-side state is kept.
type VerificationClaims struct {
	UserID string           `json:"userId"`
	Email  string           `json:"email"`
	Type   VerificationType `json:"type"`
	jwt.RegisteredClaims
}

// VerificationService issues and consumes short-lived single-purpose tokens
// on top of the Signer.
type VerificationService struct {
	signer   *Signer
	emailTTL time.Duration
	resetTTL time.Duration
}

// NewVerificationService creates a VerificationService. Zero TTLs fall back
// to the defaults (24h for email verification, 1h for password reset).
func NewVerificationService(signer *Signer, emailTTL, resetTTL time.Duration) *VerificationService {
	if emailTTL <= 0 {
		emailTTL = DefaultEmailVerificationTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultPasswordResetTTL
	}
	return &VerificationService{
		signer:   signer,
		emailTTL: emailTTL,
		resetTTL: resetTTL,
	}
}

// IssueEmailVerification issues a token proving control of the email address.
func (v *VerificationService) IssueEmailVerification(userID, email string) (string, error) {
	return v.issue(userID, email, TypeEmailVerification, v.emailTTL)
}

// IssuePasswordReset issues a token authorizing a password reset.
func (v *VerificationService) IssuePasswordReset(userID, email string) (string, error) {
	return v.issue(userID, email, TypePasswordReset, v.resetTTL)
}

func (v *VerificationService) issue(userID, email string, typ VerificationType, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &VerificationClaims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return v.signer.sign(claims)
}

// Consume verifies the token and checks its type. A wrong type, bad
// signature and expiry all fold into one externally-visible error so callers
// cannot tell which check failed. Replay protection belongs to the caller:
// consuming the same token twice succeeds here.
func (v *VerificationService) Consume(tokenString string, expected VerificationType) (*VerificationClaims, error) {
	claims := &VerificationClaims{}
	if err := v.signer.parse(tokenString, claims); err != nil {
		return nil, fmt.Errorf("invalid or expired verification token: %w", models.ErrUnauthorized)
	}

	if claims.Type != expected {
		return nil, fmt.Errorf("invalid or expired verification token: %w", models.ErrUnauthorized)
	}

	return claims, nil
}
