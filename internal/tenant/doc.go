// Package tenant routes data access to per-tenant SQLite databases.
//
// # Identifiers
//
// A tenant is known to users by its identity (an email address) and to
// storage by an ID: the uppercase hex SHA-256 digest of the identity. IDs
// name the database files and key the Registry. The default database, which
// holds account data, uses the sentinel DefaultID.
//
// # Files
//
// Every tenant lives in <dir>/<ID>.data.db, plus whatever -wal, -shm and
// -journal sidecars SQLite keeps next to it.
//
// # Routing
//
// The active tenant travels in context.Context:
//
//	ctx = tenant.WithTenant(ctx, "user@example.com")
//	db, err := router.DB(ctx)
//
// Router.Pool resolves through the Registry, which attaches an existing file
// or provisions a new database (running the bootstrap scripts) the first time
// an ID is seen. Concurrent first requests for one ID share a single
// provisioning.
//
// # Renaming
//
// Renamer.Rename moves a tenant's files to the ID of a new identity. While it
// runs, resolving either ID fails with ErrBusy. Afterwards the old ID resolves
// to ErrNotFound until Registry.Reinstate. That tombstone is held in memory
// only: after a restart, resolving the old ID provisions a fresh database.
package tenant
