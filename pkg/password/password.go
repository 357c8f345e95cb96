package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Iteration count follows the OWASP recommendation for
// PBKDF2-HMAC-SHA256.
const (
	Iterations = 100_000
	SaltLength = 16
	KeyLength  = 32
)

// Hash derives a key from the password with a fresh random salt and returns
// the stored record in the form base64(salt) + ":" + base64(key). Hashing the
// same password twice yields different records.
func Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, Iterations, KeyLength, sha256.New)

	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(key), nil
}

// Verify re-derives the key with the stored salt and compares in constant
// time. A malformed record is a verification failure, never an error; the
// caller cannot distinguish a bad password from a corrupt record.
func Verify(password, record string) bool {
	saltPart, keyPart, ok := strings.Cut(record, ":")
	if !ok || saltPart == "" || keyPart == "" {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(keyPart)
	if err != nil {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, Iterations, len(stored), sha256.New)

	return subtle.ConstantTimeCompare(derived, stored) == 1
}
