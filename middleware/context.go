package middleware

import (
	"context"
)

// Context key type to avoid collisions
type contextKey string

// authContextKey is the context key for the per-request AuthContext.
const authContextKey contextKey = "auth_context"

// AuthContext carries the authenticated identity for the remainder of a
// request's lifecycle. It is created once per admitted request and never
// shared across requests.
type AuthContext struct {
	// RawToken is the bearer token exactly as presented; downstream
	// proxying forwards it unchanged.
	RawToken string

	// Subject is the stable per-user identifier.
	Subject string

	// TenantID is the issuing tenant.
	TenantID string

	// DisplayID is a human-readable identity for logs.
	DisplayID string
}

// WithAuthContext attaches an AuthContext to the request context.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// GetAuthContext retrieves the AuthContext, or nil if the request was not
// admitted through the authentication middleware.
func GetAuthContext(ctx context.Context) *AuthContext {
	if val := ctx.Value(authContextKey); val != nil {
		if ac, ok := val.(*AuthContext); ok {
			return ac
		}
	}
	return nil
}
