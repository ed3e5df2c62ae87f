// ABOUTME: Tests for the SQLite store routed through real tenant databases
// ABOUTME: Covers user and movie CRUD, tenant isolation and routing errors

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tenantdb/internal/tenant"
)

// setupTestStore creates a store over a registry in a temporary directory.
func setupTestStore(t *testing.T) (*SQLiteStore, *tenant.Registry) {
	t.Helper()
	scripts, err := BootstrapScripts()
	require.NoError(t, err)

	prov, err := tenant.NewProvisioner(tenant.ProvisionerConfig{
		Dir:     t.TempDir(),
		Scripts: scripts,
	})
	require.NoError(t, err)

	reg := tenant.NewRegistry(prov, nil)
	t.Cleanup(func() { reg.Close() })
	return NewSQLiteStore(tenant.NewRouter(reg)), reg
}

func TestBootstrapScripts(t *testing.T) {
	scripts, err := BootstrapScripts()
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "create.sql", scripts[0].Name)
	assert.Equal(t, "data.sql", scripts[1].Name)
	assert.NotEmpty(t, scripts[0].Statements)
	assert.Len(t, scripts[1].Statements, 3)
}

func TestSeededMovies(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "alice@example.com")

	movies, err := st.ListMovies(ctx, 0)
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "The Shawshank Redemption", movies[0].Title)
	assert.Equal(t, int64(142), movies[0].Runtime)
	assert.Equal(t, time.Date(1994, 9, 23, 0, 0, 0, 0, time.UTC), movies[0].ReleaseDate)
}

func TestMovieCRUD(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := tenant.WithTenant(context.Background(), "alice@example.com")

	movie := &Movie{
		Title:       "Alien",
		Runtime:     117,
		ReleaseDate: time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.CreateMovie(ctx, movie))
	assert.Equal(t, int64(4), movie.ID)

	got, err := st.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, movie, got)

	list, err := st.ListMovies(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, st.DeleteMovie(ctx, movie.ID))
	_, err = st.GetMovie(ctx, movie.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.DeleteMovie(ctx, movie.ID), ErrNotFound)
}

func TestMoviesAreIsolatedPerTenant(t *testing.T) {
	st, reg := setupTestStore(t)
	alice := tenant.WithTenant(context.Background(), "alice@example.com")
	bob := tenant.WithTenant(context.Background(), "bob@example.com")

	require.NoError(t, st.CreateMovie(alice, &Movie{Title: "Alien", Runtime: 117, ReleaseDate: time.Now().UTC()}))

	aliceMovies, err := st.ListMovies(alice, 0)
	require.NoError(t, err)
	bobMovies, err := st.ListMovies(bob, 0)
	require.NoError(t, err)

	assert.Len(t, aliceMovies, 4)
	assert.Len(t, bobMovies, 3)
	assert.ElementsMatch(t, []tenant.ID{
		tenant.Derive("alice@example.com"),
		tenant.Derive("bob@example.com"),
	}, reg.Known())
}

func TestUserCRUD(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := tenant.WithDefault(context.Background())

	user := &User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.CreateUser(ctx, user))

	got, err := st.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	exists, err := st.UserExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("duplicate email", func(t *testing.T) {
		err := st.CreateUser(ctx, &User{ID: "user-2", Email: "alice@example.com", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("update email", func(t *testing.T) {
		require.NoError(t, st.UpdateUserEmail(ctx, "alice@example.com", "alice@new.example.com"))

		exists, err := st.UserExists(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, exists)

		got, err := st.GetUserByEmail(ctx, "alice@new.example.com")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.ID)
	})

	t.Run("update unknown", func(t *testing.T) {
		err := st.UpdateUserEmail(ctx, "nobody@example.com", "x@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := st.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateUserEmail_Duplicate(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := tenant.WithDefault(context.Background())

	for i, email := range []string{"a@example.com", "b@example.com"} {
		require.NoError(t, st.CreateUser(ctx, &User{
			ID:        []string{"u1", "u2"}[i],
			Email:     email,
			CreatedAt: time.Now(),
		}))
	}

	err := st.UpdateUserEmail(ctx, "a@example.com", "b@example.com")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestStore_NoTenantInContext(t *testing.T) {
	st, _ := setupTestStore(t)

	_, err := st.ListMovies(context.Background(), 0)
	assert.ErrorIs(t, err, tenant.ErrNoTenant)

	err = st.CreateUser(context.Background(), &User{ID: "u", Email: "a@example.com"})
	assert.ErrorIs(t, err, tenant.ErrNoTenant)
}

func TestIsConstraintViolation(t *testing.T) {
	assert.False(t, isConstraintViolation(nil))
	assert.True(t, isConstraintViolation(errString("UNIQUE constraint failed: users.email")))
	assert.False(t, isConstraintViolation(errString("disk I/O error")))
}

type errString string

func (e errString) Error() string { return string(e) }
