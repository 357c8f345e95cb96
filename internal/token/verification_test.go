package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyline-id/keyline/internal/models"
)

func TestIssueAndConsumeEmailVerification(t *testing.T) {
	svc := NewVerificationService(NewSigner("test-secret"), 0, 0)

	tokenString, err := svc.IssueEmailVerification("user-1", "alice@example.com")
	require.NoError(t, err)

	claims, err := svc.Consume(tokenString, TypeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, TypeEmailVerification, claims.Type)
}

func TestIssueAndConsumePasswordReset(t *testing.T) {
	svc := NewVerificationService(NewSigner("test-secret"), 0, 0)

	tokenString, err := svc.IssuePasswordReset("user-1", "alice@example.com")
	require.NoError(t, err)

	claims, err := svc.Consume(tokenString, TypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, TypePasswordReset, claims.Type)
}

func TestConsumeWrongType(t *testing.T) {
	svc := NewVerificationService(NewSigner("test-secret"), 0, 0)

	tokenString, err := svc.IssueEmailVerification("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.Consume(tokenString, TypePasswordReset)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestConsumeExpired(t *testing.T) {
	svc := NewVerificationService(NewSigner("test-secret"), -time.Minute, -time.Minute)
	// Negative TTLs are below the constructor floor, so build the token with
	// an already-expired service directly.
	expired := &VerificationService{
		signer:   NewSigner("test-secret"),
		emailTTL: -time.Minute,
		resetTTL: -time.Minute,
	}

	tokenString, err := expired.IssueEmailVerification("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.Consume(tokenString, TypeEmailVerification)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestConsumeTampered(t *testing.T) {
	svc := NewVerificationService(NewSigner("test-secret"), 0, 0)

	tokenString, err := svc.IssueEmailVerification("user-1", "alice@example.com")
	require.NoError(t, err)

	parts := strings.Split(tokenString, ".")
	require.Len(t, parts, 3)
	parts[2] = strings.Repeat("A", len(parts[2]))

	_, err = svc.Consume(strings.Join(parts, "."), TypeEmailVerification)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestConsumeWrongSecret(t *testing.T) {
	issuer := NewVerificationService(NewSigner("secret-a"), 0, 0)
	consumer := NewVerificationService(NewSigner("secret-b"), 0, 0)

	tokenString, err := issuer.IssueEmailVerification("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = consumer.Consume(tokenString, TypeEmailVerification)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
