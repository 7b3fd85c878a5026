package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
)

// Role is a flat authorization label; there is no hierarchy between roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// DefaultRole is assigned to every self-registered or federated account.
const DefaultRole = RoleMember

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", apperrors.Wrapf(apperrors.ErrInvalidRole, "%q", s)
	}
	return r, nil
}

type User struct {
	ID                string    `json:"id" bson:"_id"`
	Email             string    `json:"email" bson:"email"`
	PasswordHash      string    `json:"-" bson:"password_hash,omitempty"` // never serialize
	FederatedID       string    `json:"-" bson:"federated_id,omitempty"`
	FederatedProvider string    `json:"provider,omitempty" bson:"federated_provider,omitempty"`
	Name              string    `json:"name" bson:"name"`
	Avatar            string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Role              Role      `json:"role" bson:"role"`
	CreatedAt         time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updated_at"`
}

// NormalizeEmail trims and lower-cases an address. All lookups and writes go through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether the account can log in locally.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsFederated reports whether a federated identity is linked to the account.
func (u *User) IsFederated() bool {
	return u.FederatedID != ""
}

// Validate checks the record invariants enforced before every write.
func (u *User) Validate() error {
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "email %q", u.Email)
	}
	if !u.HasPassword() && !u.IsFederated() {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "user %s has no authentication method", u.Email)
	}
	if !u.Role.Valid() {
		return apperrors.Wrapf(apperrors.ErrInvalidRole, "%q", u.Role)
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long, at most MaxPasswordBytes bytes
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return weakPassword("password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordBytes {
		return weakPassword("password must be at most 72 bytes long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return weakPassword("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return weakPassword("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return weakPassword("password must contain at least one number")
	}

	return nil
}

// WeakPasswordError carries the rule that failed so it can be shown to the user.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string { return e.Reason }

func (e *WeakPasswordError) Unwrap() error { return apperrors.ErrWeakPassword }

func weakPassword(reason string) error {
	return &WeakPasswordError{Reason: reason}
}

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if apperrors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", weakPassword("password must be at most 72 bytes long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares in constant time. An empty hash never matches.
func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
