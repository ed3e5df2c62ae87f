// ABOUTME: Mock Store implementation for testing
// ABOUTME: Keeps users and movies in memory, partitioned by the tenant in scope

package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/2389/tenantdb/internal/tenant"
)

// errNoScope mirrors the router refusing a context without a tenant.
var errNoScope = errors.New("mock store: no tenant in context")

// mockTenant is the data of one tenant.
type mockTenant struct {
	users  map[string]*User // keyed by email
	movies map[int64]*Movie
	nextID int64
}

// MockStore is an in-memory Store implementation for testing. Like the
// SQLite store it keeps one data set per tenant identifier.
type MockStore struct {
	mu      sync.RWMutex
	tenants map[tenant.ID]*mockTenant

	// Fail, when set, is returned by every call whose method name it is keyed by.
	Fail map[string]error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		tenants: make(map[tenant.ID]*mockTenant),
		Fail:    make(map[string]error),
	}
}

// scope returns the tenant data for ctx, creating it on first use.
// Must be called with mu held for writing when create is true.
func (m *MockStore) scope(ctx context.Context, create bool) (*mockTenant, error) {
	id, ok := tenant.Current(ctx)
	if !ok {
		return nil, errNoScope
	}
	t, ok := m.tenants[id]
	if !ok {
		if !create {
			return &mockTenant{}, nil
		}
		t = &mockTenant{
			users:  make(map[string]*User),
			movies: make(map[int64]*Movie),
		}
		m.tenants[id] = t
	}
	return t, nil
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail["CreateUser"]; err != nil {
		return err
	}

	t, err := m.scope(ctx, true)
	if err != nil {
		return err
	}
	if _, ok := t.users[user.Email]; ok {
		return ErrDuplicateUser
	}
	u := *user
	t.users[u.Email] = &u
	return nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.scope(ctx, false)
	if err != nil {
		return nil, err
	}
	u, ok := t.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// UserExists reports whether email is registered.
func (m *MockStore) UserExists(ctx context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.scope(ctx, false)
	if err != nil {
		return false, err
	}
	_, ok := t.users[email]
	return ok, nil
}

// UpdateUserEmail changes a user's email.
func (m *MockStore) UpdateUserEmail(ctx context.Context, oldEmail, newEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail["UpdateUserEmail"]; err != nil {
		return err
	}

	t, err := m.scope(ctx, true)
	if err != nil {
		return err
	}
	u, ok := t.users[oldEmail]
	if !ok {
		return ErrNotFound
	}
	if _, taken := t.users[newEmail]; taken {
		return ErrDuplicateUser
	}
	delete(t.users, oldEmail)
	u.Email = newEmail
	t.users[newEmail] = u
	return nil
}

// CreateMovie stores a movie and assigns its ID.
func (m *MockStore) CreateMovie(ctx context.Context, movie *Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail["CreateMovie"]; err != nil {
		return err
	}

	t, err := m.scope(ctx, true)
	if err != nil {
		return err
	}
	t.nextID++
	movie.ID = t.nextID
	copied := *movie
	t.movies[copied.ID] = &copied
	return nil
}

// GetMovie retrieves a movie by ID.
func (m *MockStore) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.scope(ctx, false)
	if err != nil {
		return nil, err
	}
	movie, ok := t.movies[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *movie
	return &copied, nil
}

// ListMovies returns up to limit movies ordered by ID.
func (m *MockStore) ListMovies(ctx context.Context, limit int) ([]*Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.Fail["ListMovies"]; err != nil {
		return nil, err
	}

	t, err := m.scope(ctx, false)
	if err != nil {
		return nil, err
	}
	movies := make([]*Movie, 0, len(t.movies))
	for _, movie := range t.movies {
		copied := *movie
		movies = append(movies, &copied)
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].ID < movies[j].ID })
	if limit > 0 && len(movies) > limit {
		movies = movies[:limit]
	}
	return movies, nil
}

// DeleteMovie removes a movie.
func (m *MockStore) DeleteMovie(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.scope(ctx, true)
	if err != nil {
		return err
	}
	if _, ok := t.movies[id]; !ok {
		return ErrNotFound
	}
	delete(t.movies, id)
	return nil
}

// Compile-time interface checks.
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
