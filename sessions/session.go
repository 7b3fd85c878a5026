package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/go-pm-server/users"
)

// Identity is the canonical claim produced by a successful login or a verified
// session token. Downstream handlers read it from the request context and never
// look at raw tokens.
type Identity struct {
	UserID    string     // Subject of the token (users.User.ID)
	Role      users.Role // Empty for password reset tokens
	TokenID   string     // jti of the token the identity was read from
	ExpiresAt time.Time  // When the token stops being accepted
}

// NewIdentity builds the identity a session token is issued for.
func NewIdentity(u *users.User) Identity {
	return Identity{UserID: u.ID, Role: u.Role}
}

// HasRole reports whether the identity's role is one of roles. Matching is flat equality.
func (i Identity) HasRole(roles ...users.Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches an identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity attached by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}
