package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/keyline-id/keyline/internal/models"
)

// Global validator instance (reused across all services)
var validate = validator.New()

var (
	// Basic RFC 5322-ish email check; full validation happens at delivery.
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// 3-20 chars, starts alphanumeric, then letters, digits, hyphen, underscore.
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,19}$`)

	scopeRegex = regexp.MustCompile(`^[A-Za-z0-9_:]+$`)
)

const (
	passwordMinLength = 8
	passwordMaxLength = 128
	emailMaxLength    = 255
)

// validateStruct runs go-playground/validator tags over a request struct and
// folds the first failure into the Validation error kind.
func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		return fmt.Errorf("%s failed on %q: %w", ve[0].Field(), ve[0].Tag(), models.ErrBadRequest)
	}
	return fmt.Errorf("validation failed: %w", models.ErrBadRequest)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", models.ErrBadRequest)
	}
	if len(email) > emailMaxLength {
		return fmt.Errorf("email is too long: %w", models.ErrBadRequest)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %w", models.ErrBadRequest)
	}
	return nil
}

func validateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-20 characters, start alphanumeric, and contain only letters, numbers, hyphens or underscores: %w", models.ErrBadRequest)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters: %w", passwordMinLength, models.ErrBadRequest)
	}
	if len(password) > passwordMaxLength {
		return fmt.Errorf("password must not exceed %d characters: %w", passwordMaxLength, models.ErrBadRequest)
	}
	return nil
}

// isEmailAccount reports whether an account identifier is an email address
// rather than a username.
func isEmailAccount(account string) bool {
	return strings.Contains(account, "@")
}

var localhostHostnames = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// validateRedirectURI enforces the OAuth redirect URI rules: absolute,
// https (http only for localhost), no fragment.
func validateRedirectURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("redirect_uri is required: %w", models.ErrBadRequest)
	}

	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("redirect_uri must be an absolute URI: %w", models.ErrBadRequest)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !localhostHostnames[u.Hostname()] {
			return fmt.Errorf("redirect_uri must use https for non-localhost: %w", models.ErrBadRequest)
		}
	default:
		return fmt.Errorf("invalid redirect_uri scheme: %w", models.ErrBadRequest)
	}

	if u.Fragment != "" || strings.Contains(uri, "#") {
		return fmt.Errorf("redirect_uri must not contain a fragment: %w", models.ErrBadRequest)
	}

	return nil
}

func validateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return fmt.Errorf("at least one scope is required: %w", models.ErrBadRequest)
	}
	for _, s := range scopes {
		if !scopeRegex.MatchString(s) {
			return fmt.Errorf("invalid scope format %q: %w", s, models.ErrBadRequest)
		}
	}
	return nil
}
