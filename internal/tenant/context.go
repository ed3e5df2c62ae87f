// ABOUTME: Carries the active tenant for a unit of work through context.Context
// ABOUTME: Provides WithTenant/WithDefault/Current for request-scoped routing

package tenant

import "context"

// scopeKey is the key type for storing the tenant scope in context.Context.
type scopeKey struct{}

// WithTenant returns a context whose data access is routed to the database
// of identity.
func WithTenant(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, scopeKey{}, Derive(identity))
}

// WithDefault returns a context whose data access is routed to the default
// database. Account operations use it explicitly.
func WithDefault(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, DefaultID)
}

// WithID returns a context routed to an already derived identifier.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, scopeKey{}, id)
}

// Current returns the identifier active in ctx, and false if no scope was set.
func Current(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(scopeKey{}).(ID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
