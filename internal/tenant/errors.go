// ABOUTME: Error taxonomy for tenant routing, provisioning and renaming
// ABOUTME: Callers match these with errors.Is; all are wrapped with context

package tenant

import "errors"

var (
	// ErrDerivation is returned when the digest used for storage identifiers
	// is unavailable. It is a startup-time failure.
	ErrDerivation = errors.New("identifier digest unavailable")

	// ErrProvisioning is returned when a bootstrap script fails with a
	// non-benign error. The tenant stays unregistered so a later request can retry.
	ErrProvisioning = errors.New("provisioning failed")

	// ErrNotFound is returned when renaming a tenant that has no registry entry.
	ErrNotFound = errors.New("tenant not found")

	// ErrRenameIO is returned when moving tenant files fails partway.
	ErrRenameIO = errors.New("renaming tenant storage")

	// ErrConnection is returned when a tenant database cannot be opened or pinged.
	ErrConnection = errors.New("tenant storage unreachable")

	// ErrBusy is returned when an identifier is reserved by a rename in progress.
	ErrBusy = errors.New("tenant is being renamed")

	// ErrExists is returned when a rename target is already registered or on disk.
	ErrExists = errors.New("tenant already exists")

	// ErrNoTenant is returned by the Router when the context carries no tenant scope.
	ErrNoTenant = errors.New("no tenant in context")
)
