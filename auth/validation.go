package auth

import (
	"net/mail"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/users"
)

const maxNameLength = 200

// Validator provides centralized input validation for the authentication flows.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserCredentials validates login credentials
func (v *Validator) ValidateUserCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return invalid("password is required")
	}
	return nil
}

// ValidateRegistration validates a new local account
func (v *Validator) ValidateRegistration(req RegisterRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return invalid("name is required")
	}
	if len(name) > maxNameLength {
		return invalid("name is too long")
	}
	if err := v.ValidateEmail(req.Email); err != nil {
		return err
	}
	return users.ValidatePasswordStrength(req.Password)
}

// ValidateEmail checks the address parses as a single bare mailbox
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return invalid("invalid email format")
	}
	return nil
}

// ValidateRedirectURI validates redirect URI format. An empty URI is allowed.
func ValidateRedirectURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return invalid("redirect_uri is not a valid URL")
	}

	// Must start with http:// or https://
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("redirect_uri must use http or https scheme")
	}

	// Should not contain fragments
	if u.Fragment != "" || strings.Contains(uri, "#") {
		return invalid("redirect_uri must not contain fragments")
	}

	return nil
}

// InvalidInputError carries a message that is safe to show the client.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

func (e *InvalidInputError) Unwrap() error { return apperrors.ErrInvalidRequest }

func invalid(reason string) error {
	return errors.WithStack(&InvalidInputError{Reason: reason})
}
