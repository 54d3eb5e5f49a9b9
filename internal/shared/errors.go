package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")

	// ErrMissingToken occurs when no bearer or refresh token was supplied.
	ErrMissingToken = errors.New("token required")
	// ErrInvalidToken covers malformed, expired and tampered access tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRefreshToken covers malformed, expired and tampered refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrPrincipalNotFound indicates the token or login name references no account.
	ErrPrincipalNotFound = errors.New("user not found")
	// ErrPrincipalDeactivated indicates a soft-deleted account attempted to log in.
	ErrPrincipalDeactivated = errors.New("user is deactivated")
	// ErrInvalidCredential indicates a password mismatch.
	ErrInvalidCredential = errors.New("username or password is invalid")
	// ErrAccessDenied indicates the account role is outside the allowed set.
	ErrAccessDenied = errors.New("access denied")
	// ErrLoginNameTaken occurs when registering an existing login name.
	ErrLoginNameTaken = errors.New("username already exists")
	// ErrAlreadyActive occurs when restoring an account that is not deactivated.
	ErrAlreadyActive = errors.New("user is already active")

	// ErrAliasConflict indicates a project alias collided at write time. Retryable.
	ErrAliasConflict = errors.New("alias already exists")

	// ErrConnectionUnavailable indicates the data store could not be initialised.
	ErrConnectionUnavailable = errors.New("database unavailable")
)

type notFoundError struct{ message string }

func (e notFoundError) Error() string { return e.message }

func (e notFoundError) Unwrap() error { return ErrNotFound }

// NotFound returns an error matching ErrNotFound whose text is a
// client-facing message.
func NotFound(message string) error {
	return notFoundError{message: message}
}
