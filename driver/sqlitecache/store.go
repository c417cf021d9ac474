// Package sqlitecache builds a SQL-backed memoize storage on the pure-Go
// modernc sqlite driver.
package sqlitecache

import (
	_ "modernc.org/sqlite"

	"github.com/goforj/memoize/driver/sqlcache"
	"github.com/goforj/memoize/memocore"
)

// Config configures a sqlite-backed storage.
type Config struct {
	// DSN is the database file path or URI.
	DSN string
	// Table holds the records. Defaults to "memo_entries".
	Table string
	// Prefix namespaces keys within a shared table.
	Prefix string
}

// New builds a sqlite-backed memocore.Storage.
func New(cfg Config) (memocore.Storage, error) {
	return sqlcache.New(sqlcache.Config{
		DriverName: "sqlite",
		DSN:        cfg.DSN,
		Table:      cfg.Table,
		Prefix:     cfg.Prefix,
	})
}
