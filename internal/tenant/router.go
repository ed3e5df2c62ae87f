// ABOUTME: Resolves the connection pool for the tenant active in a context
// ABOUTME: Glue between the data-access layer and the tenant registry

package tenant

import (
	"context"
	"database/sql"
)

// Router hands the data-access layer the pool of the tenant in scope.
// It holds no state of its own.
type Router struct {
	registry *Registry
}

// NewRouter creates a Router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Pool returns the pool for the tenant active in ctx. A context without a
// tenant scope is an error, never an implicit default.
func (r *Router) Pool(ctx context.Context) (*Pool, error) {
	id, ok := Current(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return r.registry.Resolve(ctx, id)
}

// DB returns the database handle for the tenant active in ctx.
func (r *Router) DB(ctx context.Context) (*sql.DB, error) {
	pool, err := r.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return pool.DB, nil
}
