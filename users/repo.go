package users

import "context"

// UserRepo persists user records. Implementations must enforce unique emails:
// a Create that collides returns errors.ErrEmailAlreadyExists and never overwrites.
// Lookups that miss return errors.ErrUserNotFound.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, offset, limit int) (UsersListResponse, error)
}

type UsersListResponse struct {
	Users  []*User `json:"users"`
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}
