package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// OAuthError carries an RFC 6749 error code. The transport layer writes the
// code on the wire verbatim; the description stays internal.
type OAuthError struct {
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// Is matches any OAuthError with the same code, so callers can test with
// errors.Is(err, models.ErrInvalidGrant) regardless of the description.
func (e *OAuthError) Is(target error) bool {
	t, ok := target.(*OAuthError)
	return ok && t.Code == e.Code
}

// OAuth 2.0 error vocabulary (RFC 6749 section 5.2)
var (
	ErrInvalidRequest       = &OAuthError{Code: "invalid_request"}
	ErrInvalidClient        = &OAuthError{Code: "invalid_client"}
	ErrInvalidGrant         = &OAuthError{Code: "invalid_grant"}
	ErrInvalidScope         = &OAuthError{Code: "invalid_scope"}
	ErrUnsupportedGrantType = &OAuthError{Code: "unsupported_grant_type"}
)

// OAuthErrorf builds an OAuthError sharing the sentinel's code, with an
// internal description attached.
func OAuthErrorf(sentinel *OAuthError, description string) *OAuthError {
	return &OAuthError{Code: sentinel.Code, Description: description}
}
