// ABOUTME: Moves a tenant's storage to the identifier of its new identity
// ABOUTME: Closes the old pool, renames files, reopens and re-registers

package tenant

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Renamer changes which identifier a tenant's storage lives under.
type Renamer struct {
	registry *Registry
	logger   *slog.Logger
	rename   func(oldpath, newpath string) error
}

// NewRenamer creates a Renamer operating on registry.
func NewRenamer(registry *Registry, logger *slog.Logger) *Renamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renamer{
		registry: registry,
		logger:   logger.With("component", "renamer"),
		rename:   os.Rename,
	}
}

// move records one completed file rename.
type move struct {
	from, to string
}

// Rename moves the storage of oldIdentity to the identifier of newIdentity.
// Both identifiers reject resolution with ErrBusy until Rename returns, so no
// request can reach the new identifier before the files are in place.
func (rn *Renamer) Rename(ctx context.Context, oldIdentity, newIdentity string) (err error) {
	oldID, newID := Derive(oldIdentity), Derive(newIdentity)

	ctx, span := tracer.Start(ctx, "tenant.Rename")
	span.SetAttributes(
		attribute.String("tenant.old_id", string(oldID)),
		attribute.String("tenant.new_id", string(newID)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if oldID == newID {
		return fmt.Errorf("%w: identities map to the same storage", ErrExists)
	}

	prov := rn.registry.Provisioner()
	pool, err := rn.registry.reserve(oldID, newID)
	if err != nil {
		return err
	}

	// Whatever ends up here is registered when the reservation is released.
	var (
		registered *Pool
		committed  bool
	)
	defer func() { rn.registry.release(oldID, newID, registered, committed) }()

	if len(prov.Artifacts(newID)) > 0 {
		registered = pool
		return fmt.Errorf("%w: files for %s already on disk", ErrExists, newID)
	}

	// Close waits for queries already running on the pool to finish.
	if err := pool.Close(); err != nil {
		rn.logger.Warn("closing pool before rename", "tenant", oldID, "error", err)
	}

	moved, err := moveArtifacts(rn.rename, prov.PathFor(oldID), prov.PathFor(newID))
	if err != nil {
		if rbErr := rollback(rn.rename, moved); rbErr != nil {
			rn.logger.Error("tenant storage left partially renamed",
				"old", oldID, "new", newID, "error", err, "rollback_error", rbErr)
			// Neither identifier is safe to open until an operator repairs the files.
			rn.registry.retire(oldID, newID)
			return fmt.Errorf("%w: %s -> %s: %w (rollback failed: %w)", ErrRenameIO, oldID, newID, err, rbErr)
		}
		if restored, aerr := prov.Attach(ctx, oldID); aerr == nil {
			registered = restored
		} else {
			rn.logger.Error("reattaching tenant after failed rename", "tenant", oldID, "error", aerr)
		}
		return fmt.Errorf("%w: %s -> %s: %w", ErrRenameIO, oldID, newID, err)
	}

	committed = true

	renamed, err := prov.Attach(ctx, newID)
	if err != nil {
		return fmt.Errorf("reopening renamed tenant %s: %w", newID, err)
	}
	registered = renamed

	rn.logger.Info("renamed tenant", "old", oldID, "new", newID, "files", len(moved))
	return nil
}

// moveArtifacts renames the primary file and any sidecars from oldPrimary's
// prefix to newPrimary's. It returns the moves that completed.
func moveArtifacts(rename func(string, string) error, oldPrimary, newPrimary string) ([]move, error) {
	from := artifactPaths(oldPrimary)
	to := artifactPaths(newPrimary)

	var moved []move
	for i := range from {
		if _, err := os.Lstat(from[i]); err != nil {
			if i > 0 && errors.Is(err, fs.ErrNotExist) {
				continue // sidecars are optional
			}
			return moved, fmt.Errorf("stat %s: %w", from[i], err)
		}
		if err := rename(from[i], to[i]); err != nil {
			return moved, err
		}
		moved = append(moved, move{from: from[i], to: to[i]})
	}
	return moved, nil
}

// rollback undoes completed moves in reverse order.
func rollback(rename func(string, string) error, moved []move) error {
	var errs []error
	for i := len(moved) - 1; i >= 0; i-- {
		if err := rename(moved[i].to, moved[i].from); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
