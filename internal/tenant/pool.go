// ABOUTME: Connection pool handle bound to one tenant database file
// ABOUTME: Builds driver-specific DSNs for modernc and mattn SQLite drivers

package tenant

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// busyTimeoutMillis bounds how long a connection waits on a locked file.
const busyTimeoutMillis = 5000

// Pool is an open connection pool for one tenant database. It is safe for
// concurrent use by multiple requests of the same tenant.
type Pool struct {
	ID   ID
	Path string
	DB   *sql.DB
}

// Close closes the underlying database handle.
func (p *Pool) Close() error {
	return p.DB.Close()
}

// dsn returns the data source name for path under driver. Connection-scoped
// pragmas go in the DSN so every pooled connection gets them.
func dsn(driver, path string) (string, error) {
	u := url.URL{Scheme: "file", Opaque: path}
	q := url.Values{}
	switch driver {
	case DriverModernc:
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	case DriverCGO:
		q.Set("_journal_mode", "WAL")
		q.Set("_foreign_keys", "on")
		q.Set("_busy_timeout", fmt.Sprint(busyTimeoutMillis))
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
