package auth

import (
	"context"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/users"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func (as *AuthenticationService) GetUser(ctx context.Context, id string) (*users.User, error) {
	user, err := as.repos.Users.GetByID(ctx, id)
	return user, errors.Wrap(err, "[AuthenticationService.GetUser]")
}

// ListUsers pages through all accounts. limit is clamped to MaxListLimit.
func (as *AuthenticationService) ListUsers(ctx context.Context, offset, limit int) (users.UsersListResponse, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	list, err := as.repos.Users.List(ctx, offset, limit)
	return list, errors.Wrap(err, "[AuthenticationService.ListUsers]")
}

// SetRole changes another user's role. Admins cannot change their own role.
// Tokens already issued keep the old role until they expire.
func (as *AuthenticationService) SetRole(ctx context.Context, actorID, targetID string, role users.Role) (*users.User, error) {
	if !role.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRole, "[AuthenticationService.SetRole] %q", role)
	}
	if actorID == targetID {
		return nil, errors.Wrap(apperrors.ErrForbidden, "[AuthenticationService.SetRole] cannot change own role")
	}

	user, err := as.repos.Users.GetByID(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.SetRole] GetByID")
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	user.UpdatedAt = as.nowTime().UTC()
	if err := as.repos.Users.Update(ctx, user); err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.SetRole] Update")
	}
	return user, nil
}

// DeleteUser removes another user's account. Admins cannot delete themselves.
func (as *AuthenticationService) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return errors.Wrap(apperrors.ErrForbidden, "[AuthenticationService.DeleteUser] cannot delete own account")
	}
	return errors.Wrap(as.repos.Users.Delete(ctx, targetID), "[AuthenticationService.DeleteUser]")
}

// EnsureAdmin creates an admin account for email if none exists. It is a no-op
// when the email is already registered, whatever its role.
func (as *AuthenticationService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	_, err := as.repos.Users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return false, errors.Wrap(err, "[AuthenticationService.EnsureAdmin] GetByEmail")
	}
	if err := as.validator.ValidateRegistration(RegisterRequest{Name: name, Email: email, Password: password}); err != nil {
		return false, errors.Wrap(err, "[AuthenticationService.EnsureAdmin]")
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return false, errors.Wrap(err, "[AuthenticationService.EnsureAdmin] HashPassword")
	}
	now := as.nowTime().UTC()
	admin := &users.User{
		Email:        users.NormalizeEmail(email),
		Name:         name,
		PasswordHash: hash,
		Role:         users.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := as.repos.Users.Create(ctx, admin); err != nil {
		if apperrors.Is(err, apperrors.ErrEmailAlreadyExists) {
			return false, nil
		}
		return false, errors.Wrap(err, "[AuthenticationService.EnsureAdmin] Create")
	}
	return true, nil
}
