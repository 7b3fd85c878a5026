package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/users"
)

// ProfileUpdate holds the user-editable profile fields. Nil leaves a field unchanged.
// Email and role are not editable here.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// UserExport is the data export of one account.
type UserExport struct {
	Profile    *users.User `json:"profile"`
	ExportDate time.Time   `json:"exportDate"`
}

// UpdateProfile changes the name or avatar of target. Callers may edit their
// own profile; admins may edit anyone's.
func (as *AuthenticationService) UpdateProfile(ctx context.Context, actor sessions.Identity, targetID string, update ProfileUpdate) (*users.User, error) {
	if actor.UserID != targetID && !actor.HasRole(users.RoleAdmin) {
		return nil, errors.Wrapf(apperrors.ErrForbidden, "[AuthenticationService.UpdateProfile] %s cannot edit %s", actor.UserID, targetID)
	}
	if err := as.validator.ValidateProfile(update); err != nil {
		return nil, err
	}

	user, err := as.repos.Users.GetByID(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.UpdateProfile] GetByID")
	}
	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	if update.Avatar != nil {
		user.Avatar = strings.TrimSpace(*update.Avatar)
	}
	user.UpdatedAt = as.nowTime().UTC()
	if err := as.repos.Users.Update(ctx, user); err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.UpdateProfile] Update")
	}
	return user, nil
}

// DeleteAccount removes the caller's own account. Admin accounts must be
// removed by another admin.
func (as *AuthenticationService) DeleteAccount(ctx context.Context, actor sessions.Identity) error {
	if actor.HasRole(users.RoleAdmin) {
		return errors.Wrap(apperrors.ErrForbidden, "[AuthenticationService.DeleteAccount] admins cannot delete themselves")
	}
	return errors.Wrap(as.repos.Users.Delete(ctx, actor.UserID), "[AuthenticationService.DeleteAccount]")
}

func (as *AuthenticationService) ExportUser(ctx context.Context, id string) (*UserExport, error) {
	user, err := as.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthenticationService.ExportUser]")
	}
	return &UserExport{Profile: user, ExportDate: as.nowTime().UTC()}, nil
}

// ValidateProfile checks the fields present in update.
func (v *Validator) ValidateProfile(update ProfileUpdate) error {
	if update.Name == nil && update.Avatar == nil {
		return invalid("nothing to update")
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return invalid("name is required")
		}
		if len(name) > maxNameLength {
			return invalid("name is too long")
		}
	}
	if update.Avatar != nil {
		if avatar := strings.TrimSpace(*update.Avatar); avatar != "" {
			u, err := url.Parse(avatar)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return invalid("avatar must be an http or https URL")
			}
		}
	}
	return nil
}
