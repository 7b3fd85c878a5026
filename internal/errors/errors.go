package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the identity and session service.
// Every error that reaches an HTTP response is one of these categories.
var (
	// Authentication errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrFederatedTokenInvalid = errors.New("federated token invalid")
	ErrUserNotFound          = errors.New("user not found")
	ErrWeakPassword          = errors.New("password does not meet requirements")

	// Token errors
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")

	// Authorization errors
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
