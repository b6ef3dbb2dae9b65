package auth

import "context"

type contextKey string

const userContextKey contextKey = "auth_user"

// UserContext is the authenticated identity attached to a request
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

// SetUserInContext attaches the user identity to a context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext extracts the user identity from a context
func GetUserFromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// HasRole reports whether the user carries the given role
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
