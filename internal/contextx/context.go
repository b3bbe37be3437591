package contextx

import "context"

// Key is a private type to avoid collisions in request context keys.
type Key string

// UserIDKey is the context key used to store the authenticated user's ID (string).
const UserIDKey Key = "userID"

// RoleKey is the context key used to store the authenticated user's role (string).
const RoleKey Key = "role"

// Principal is the authenticated actor of a request.
type Principal struct {
	ID   string
	Role string
}

// PrincipalFrom reads the principal injected by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	id, _ := ctx.Value(UserIDKey).(string)
	if id == "" {
		return Principal{}, false
	}
	role, _ := ctx.Value(RoleKey).(string)
	return Principal{ID: id, Role: role}, true
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, p.ID)
	return context.WithValue(ctx, RoleKey, p.Role)
}
