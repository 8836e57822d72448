package common

import "context"

type userIDKey struct{}

// WithUserID attaches the authenticated traveller's identifier to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID reads the authenticated traveller's identifier set by the auth
// middleware. The second return is false for unauthenticated requests.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
