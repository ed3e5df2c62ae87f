// Package store provides per-tenant persistence on top of the tenant router.
//
// # Architecture
//
// SQLiteStore holds no connection of its own. Every method asks its
// DBResolver (normally *tenant.Router) for the database of the tenant carried
// in the context, so the same store value serves every tenant:
//
//	ctx = tenant.WithTenant(ctx, "alice@example.com")
//	movies, err := st.ListMovies(ctx, 50)
//
// Users are kept in the default tenant; callers scope the context with
// tenant.WithDefault before using UserStore methods.
//
// # Schema
//
// The schema and seed data are embedded SQL scripts (scripts/create.sql and
// scripts/data.sql) returned by BootstrapScripts. The tenant provisioner runs
// them once when a tenant database is first created.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateUser: email address already registered
//
// Routing failures from the resolver are wrapped and passed through, so
// errors.Is works against the tenant package sentinels.
//
// # Testing
//
// Use NewMockStore() for unit tests. It partitions data by the tenant in the
// context just like the SQLite store.
package store
