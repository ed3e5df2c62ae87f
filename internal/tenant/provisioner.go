// ABOUTME: Creates and opens tenant SQLite databases under the data directory
// ABOUTME: Runs bootstrap scripts on first use, swallowing already-applied errors

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// File naming: <ID>.<dataExt>.db for the database, plus SQLite sidecars.
// A provisioning marker sits next to the database until its bootstrap
// scripts have all run.
const (
	dataExt      = "data"
	fileExt      = ".db"
	walSuffix    = "-wal"
	shmSuffix    = "-shm"
	jrnSuffix    = "-journal"
	markerSuffix = ".provisioning"
)

// sidecarSuffixes are the companion files SQLite may keep next to a database.
var sidecarSuffixes = []string{walSuffix, shmSuffix, jrnSuffix}

var tracer = otel.Tracer("github.com/2389/tenantdb/internal/tenant")

// Opener opens a database/sql handle. It matches sql.Open.
type Opener func(driver, dsn string) (*sql.DB, error)

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	Dir          string   // directory holding tenant files
	Driver       string   // DriverModernc or DriverCGO
	MaxOpenConns int      // per-tenant pool size, 0 for driver default
	Scripts      []Script // run in order on new tenants
	Logger       *slog.Logger
	Opener       Opener // defaults to sql.Open
}

// Provisioner creates tenant databases and opens pools against them.
type Provisioner struct {
	dir          string
	driver       string
	maxOpenConns int
	scripts      []Script
	open         Opener
	logger       *slog.Logger
}

// NewProvisioner creates a Provisioner, creating the data directory if needed.
func NewProvisioner(cfg ProvisionerConfig) (*Provisioner, error) {
	if cfg.Dir == "" {
		return nil, errors.New("provisioner: data directory is required")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if _, err := dsn(cfg.Driver, cfg.Dir); err != nil {
		return nil, fmt.Errorf("provisioner: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if cfg.Opener == nil {
		cfg.Opener = sql.Open
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Provisioner{
		dir:          cfg.Dir,
		driver:       cfg.Driver,
		maxOpenConns: cfg.MaxOpenConns,
		scripts:      cfg.Scripts,
		open:         cfg.Opener,
		logger:       cfg.Logger.With("component", "provisioner"),
	}, nil
}

// Dir returns the data directory.
func (p *Provisioner) Dir() string {
	return p.dir
}

// PathFor returns the primary database file path for id.
func (p *Provisioner) PathFor(id ID) string {
	return filepath.Join(p.dir, string(id)+"."+dataExt+fileExt)
}

// markerPath returns the provisioning marker path for id.
func (p *Provisioner) markerPath(id ID) string {
	return p.PathFor(id) + markerSuffix
}

// Exists reports whether a fully provisioned database file for id is on disk.
func (p *Provisioner) Exists(id ID) bool {
	_, err := os.Stat(p.PathFor(id))
	return err == nil && !p.incomplete(id)
}

// incomplete reports whether a provisioning of id started and never finished.
func (p *Provisioner) incomplete(id ID) bool {
	_, err := os.Lstat(p.markerPath(id))
	return err == nil
}

// Artifacts returns the paths of every file currently on disk for id,
// primary file first and provisioning marker last.
func (p *Provisioner) Artifacts(id ID) []string {
	candidates := append(artifactPaths(p.PathFor(id)), p.markerPath(id))
	var paths []string
	for _, candidate := range candidates {
		if _, err := os.Lstat(candidate); err == nil {
			paths = append(paths, candidate)
		}
	}
	return paths
}

// artifactPaths lists the primary path followed by every sidecar path.
func artifactPaths(primary string) []string {
	paths := []string{primary}
	for _, s := range sidecarSuffixes {
		paths = append(paths, primary+s)
	}
	return paths
}

// Provision creates the database file for id, runs the bootstrap scripts and
// returns an open pool. The marker written first is removed only after the
// last script succeeds, so an interrupted provisioning is never mistaken for
// a usable tenant. On any failure the created files are removed.
func (p *Provisioner) Provision(ctx context.Context, id ID) (pool *Pool, err error) {
	ctx, span := tracer.Start(ctx, "tenant.Provision")
	span.SetAttributes(attribute.String("tenant.id", string(id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if p.incomplete(id) {
		p.logger.Warn("discarding partially provisioned tenant", "tenant", id)
		p.removeArtifacts(id)
	}

	path := p.PathFor(id)
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, fmt.Errorf("%w: %s already on disk", ErrExists, id)
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrConnection, statErr)
	}

	if err := os.WriteFile(p.markerPath(id), nil, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %s: writing marker: %v", ErrProvisioning, id, err)
	}

	pool, err = p.openPool(ctx, id)
	if err != nil {
		p.removeArtifacts(id)
		return nil, err
	}

	if err := p.runScripts(ctx, pool.DB); err != nil {
		_ = pool.Close()
		p.removeArtifacts(id)
		return nil, fmt.Errorf("%w: %s: %v", ErrProvisioning, id, err)
	}

	if err := os.Remove(p.markerPath(id)); err != nil {
		_ = pool.Close()
		p.removeArtifacts(id)
		return nil, fmt.Errorf("%w: %s: clearing marker: %v", ErrProvisioning, id, err)
	}

	p.logger.Info("provisioned tenant", "tenant", id, "path", path)
	return pool, nil
}

// Attach opens a pool against the existing database file for id without
// running any scripts. A database whose provisioning never finished is
// refused.
func (p *Provisioner) Attach(ctx context.Context, id ID) (*Pool, error) {
	if p.incomplete(id) {
		return nil, fmt.Errorf("%w: %s was never fully provisioned", ErrConnection, id)
	}
	if !p.Exists(id) {
		return nil, fmt.Errorf("%w: no database file for %s", ErrConnection, id)
	}
	pool, err := p.openPool(ctx, id)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("attached tenant", "tenant", id, "path", pool.Path)
	return pool, nil
}

// openPool opens and pings a pool for id.
func (p *Provisioner) openPool(ctx context.Context, id ID) (*Pool, error) {
	path := p.PathFor(id)
	source, err := dsn(p.driver, path)
	if err != nil {
		return nil, err
	}

	db, err := p.open(p.driver, source)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrConnection, id, err)
	}
	if p.maxOpenConns > 0 {
		db.SetMaxOpenConns(p.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: pinging %s: %v", ErrConnection, id, err)
	}

	return &Pool{ID: id, Path: path, DB: db}, nil
}

// runScripts executes every statement of every script in order.
// Statements whose effect is already present are skipped.
func (p *Provisioner) runScripts(ctx context.Context, db *sql.DB) error {
	for _, script := range p.scripts {
		for i, stmt := range script.Statements {
			_, err := db.ExecContext(ctx, stmt)
			if err == nil {
				continue
			}
			if isAlreadyApplied(err) {
				p.logger.Debug("statement already applied", "script", script.Name, "statement", i+1)
				continue
			}
			return fmt.Errorf("script %s statement %d: %w", script.Name, i+1, err)
		}
	}
	return nil
}

// removeArtifacts deletes every file of id, the marker last. Used to undo a
// failed provisioning.
func (p *Provisioner) removeArtifacts(id ID) {
	for _, path := range p.Artifacts(id) {
		if err := os.Remove(path); err != nil {
			p.logger.Warn("removing artifact after failed provisioning", "path", path, "error", err)
		}
	}
}

// sweepIncomplete removes the files of every provisioning that was
// interrupted, and returns the affected identifiers.
func (p *Provisioner) sweepIncomplete() ([]ID, error) {
	markers, err := filepath.Glob(filepath.Join(p.dir, "*"+fileExt+markerSuffix))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", p.dir, err)
	}
	var ids []ID
	for _, m := range markers {
		name, _, _ := strings.Cut(filepath.Base(m), ".")
		if name == "" {
			continue
		}
		id := ID(name)
		p.logger.Warn("discarding partially provisioned tenant", "tenant", id)
		p.removeArtifacts(id)
		ids = append(ids, id)
	}
	return ids, nil
}
