package tenant

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// testScripts creates one table and seeds one row, so a re-run would be
// visible as a second row.
var testScripts = []Script{
	ParseScript("create.sql", `
		-- schema
		CREATE TABLE movies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL
		);
	`),
	ParseScript("data.sql", `INSERT INTO movies (title) VALUES ('Alien');`),
}

// countingOpener wraps sql.Open and counts calls.
type countingOpener struct {
	n atomic.Int32
}

func (c *countingOpener) open(driver, dsn string) (*sql.DB, error) {
	c.n.Add(1)
	return sql.Open(driver, dsn)
}

func newTestProvisioner(t *testing.T, dir string, opener Opener) *Provisioner {
	t.Helper()
	prov, err := NewProvisioner(ProvisionerConfig{
		Dir:     dir,
		Scripts: testScripts,
		Logger:  slog.Default(),
		Opener:  opener,
	})
	require.NoError(t, err)
	return prov
}

// setupTestRegistry creates a registry over a temporary directory.
func setupTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := NewRegistry(newTestProvisioner(t, dir, nil), nil)
	t.Cleanup(func() {
		reg.Close()
	})
	return reg, dir
}

func countMovies(t *testing.T, pool *Pool) int {
	t.Helper()
	var n int
	err := pool.DB.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM movies`).Scan(&n)
	require.NoError(t, err)
	return n
}
