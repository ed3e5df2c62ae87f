// ABOUTME: Concurrent registry of tenant connection pools keyed by identifier
// ABOUTME: Provisions unseen tenants once per identifier using singleflight

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/singleflight"
)

// Registry owns every open tenant pool. Resolve, Remove and Put are
// linearizable per identifier.
type Registry struct {
	prov   *Provisioner
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.Mutex
	pools    map[ID]*Pool
	inflight map[ID]struct{} // being attached or provisioned
	reserved map[ID]struct{} // held by a rename in progress
	retired  map[ID]struct{} // renamed away; resolving them is ErrNotFound
}

// NewRegistry creates an empty registry backed by prov. Call Load to
// register tenants already on disk.
func NewRegistry(prov *Provisioner, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		prov:     prov,
		logger:   logger.With("component", "registry"),
		pools:    make(map[ID]*Pool),
		inflight: make(map[ID]struct{}),
		reserved: make(map[ID]struct{}),
		retired:  make(map[ID]struct{}),
	}
}

// Provisioner returns the provisioner backing the registry.
func (r *Registry) Provisioner() *Provisioner {
	return r.prov
}

// Resolve returns the pool for id, attaching or provisioning it on first use.
// Concurrent calls for the same unseen id share a single provisioning.
func (r *Registry) Resolve(ctx context.Context, id ID) (*Pool, error) {
	if id == "" {
		return nil, errors.New("resolve: empty tenant identifier")
	}

	r.mu.Lock()
	if pool, ok := r.pools[id]; ok {
		r.mu.Unlock()
		return pool, nil
	}
	if err := r.unavailableLocked(id); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	// The shared call must not be cut short by whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(string(id), func() (any, error) {
		return r.create(shared, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pool), nil
}

// unavailableLocked reports why id may not be resolved right now.
// Must be called with mu held.
func (r *Registry) unavailableLocked(id ID) error {
	if _, ok := r.reserved[id]; ok {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	if _, ok := r.retired[id]; ok {
		return fmt.Errorf("%w: %s was renamed", ErrNotFound, id)
	}
	return nil
}

// Reinstate lifts the tombstone a rename left on id, so that a new tenant
// with that identity can be provisioned.
func (r *Registry) Reinstate(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.retired, id)
}

// retire makes resolving ids fail with ErrNotFound until Reinstate.
func (r *Registry) retire(ids ...ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.retired[id] = struct{}{}
	}
}

// create attaches or provisions id and registers the result.
func (r *Registry) create(ctx context.Context, id ID) (*Pool, error) {
	r.mu.Lock()
	if pool, ok := r.pools[id]; ok {
		r.mu.Unlock()
		return pool, nil
	}
	if err := r.unavailableLocked(id); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.inflight[id] = struct{}{}
	r.mu.Unlock()

	var (
		pool *Pool
		err  error
	)
	if r.prov.Exists(id) {
		pool, err = r.prov.Attach(ctx, id)
	} else {
		pool, err = r.prov.Provision(ctx, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
	if err != nil {
		r.logger.Error("tenant resolution failed", "tenant", id, "error", err)
		return nil, err
	}
	r.pools[id] = pool
	return pool, nil
}

// Remove detaches the pool for id and hands ownership to the caller, who
// must close it.
func (r *Registry) Remove(id ID) (*Pool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

// removeLocked is Remove with mu held.
func (r *Registry) removeLocked(id ID) (*Pool, bool) {
	pool, ok := r.pools[id]
	if ok {
		delete(r.pools, id)
	}
	return pool, ok
}

// Put registers pool under id. Last writer wins; a displaced pool is closed.
func (r *Registry) Put(id ID, pool *Pool) {
	r.mu.Lock()
	old, ok := r.pools[id]
	r.pools[id] = pool
	r.mu.Unlock()

	if ok && old != pool {
		if err := old.Close(); err != nil {
			r.logger.Warn("closing displaced pool", "tenant", id, "error", err)
		}
	}
}

// Known returns the registered identifiers in sorted order.
func (r *Registry) Known() []ID {
	r.mu.Lock()
	ids := make([]ID, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Load registers every tenant whose database file is already in the data
// directory, without running bootstrap scripts, then makes sure the default
// tenant exists. Files of provisionings interrupted by a crash are removed
// first, so those tenants are provisioned again on their next request.
// Load must run before the registry serves requests.
func (r *Registry) Load(ctx context.Context) error {
	discarded, err := r.prov.sweepIncomplete()
	if err != nil {
		return err
	}

	ids, err := Discover(r.prov.Dir())
	if err != nil {
		return err
	}

	for _, id := range ids {
		r.mu.Lock()
		_, registered := r.pools[id]
		r.mu.Unlock()
		if registered {
			continue
		}
		if !r.prov.Exists(id) {
			r.logger.Warn("skipping stray file without tenant database", "tenant", id)
			continue
		}

		pool, err := r.prov.Attach(ctx, id)
		if err != nil {
			return fmt.Errorf("attaching tenant %s: %w", id, err)
		}
		r.Put(id, pool)
	}

	if _, err := r.Resolve(ctx, DefaultID); err != nil {
		return fmt.Errorf("ensuring default tenant: %w", err)
	}

	r.logger.Info("tenant registry loaded", "dir", r.prov.Dir(), "discovered", len(ids), "discarded", len(discarded), "registered", len(r.Known()))
	return nil
}

// Close closes every registered pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[ID]*Pool)
	r.mu.Unlock()

	var errs []error
	for id, pool := range pools {
		if err := pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// reserve marks oldID and newID as under rename and detaches the pool of
// oldID with Remove's contract: the caller owns the returned pool and must
// close it or hand it back through release. Resolves of either identifier
// fail with ErrBusy until release.
func (r *Registry) reserve(oldID, newID ID) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range []ID{oldID, newID} {
		if _, ok := r.reserved[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrBusy, id)
		}
		if _, ok := r.inflight[id]; ok {
			return nil, fmt.Errorf("%w: %s is being provisioned", ErrBusy, id)
		}
	}
	if _, ok := r.pools[oldID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, oldID)
	}
	if _, ok := r.pools[newID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, newID)
	}

	pool, _ := r.removeLocked(oldID)
	r.reserved[oldID] = struct{}{}
	r.reserved[newID] = struct{}{}
	return pool, nil
}

// release clears the reservation of oldID and newID, registering pool under
// pool.ID first when pool is non-nil. A committed rename retires oldID.
func (r *Registry) release(oldID, newID ID, pool *Pool, committed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pool != nil {
		r.pools[pool.ID] = pool
	}
	if committed {
		r.retired[oldID] = struct{}{}
		delete(r.retired, newID)
	}
	delete(r.reserved, oldID)
	delete(r.reserved, newID)
}

// Discover lists the tenant identifiers that have database files in dir.
// The identifier is the file name up to its first dot.
func Discover(dir string) ([]ID, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	found := mapset.NewThreadUnsafeSet[ID]()
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		base := filepath.Base(m)
		name, _, _ := strings.Cut(base, ".")
		if name == "" {
			continue
		}
		found.Add(ID(name))
	}

	ids := found.ToSlice()
	slices.Sort(ids)
	return ids, nil
}
