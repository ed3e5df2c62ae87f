package tenant

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_NoScope(t *testing.T) {
	reg, _ := setupTestRegistry(t)
	router := NewRouter(reg)

	_, err := router.Pool(context.Background())
	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestRouter_Default(t *testing.T) {
	reg, dir := setupTestRegistry(t)
	router := NewRouter(reg)

	pool, err := router.Pool(WithDefault(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, DefaultID, pool.ID)
	assert.Equal(t, filepath.Join(dir, "db.data.db"), pool.Path)
}

func TestRouter_RoutesByScope(t *testing.T) {
	reg, _ := setupTestRegistry(t)
	router := NewRouter(reg)
	base := context.Background()

	a, err := router.DB(WithTenant(base, "a@example.com"))
	require.NoError(t, err)
	b, err := router.DB(WithTenant(base, "b@example.com"))
	require.NoError(t, err)
	again, err := router.DB(WithID(base, Derive("a@example.com")))
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Same(t, a, again)
}

// End-to-end: first use provisions, second use reuses, rename moves the data.
func TestScenario_ProvisionReuseRename(t *testing.T) {
	dir := t.TempDir()
	opener := &countingOpener{}
	reg := NewRegistry(newTestProvisioner(t, dir, opener.open), nil)
	t.Cleanup(func() { reg.Close() })
	router := NewRouter(reg)
	renamer := NewRenamer(reg, nil)
	ctx := WithTenant(context.Background(), "user@example.com")

	first, err := router.Pool(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, countMovies(t, first), "schema and seed ran")

	second, err := router.Pool(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), opener.n.Load())

	require.NoError(t, renamer.Rename(ctx, "user@example.com", "user2@example.com"))

	_, err = router.Pool(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	moved, err := router.Pool(WithTenant(context.Background(), "user2@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, countMovies(t, moved))
}
