// Package postgrescache builds a SQL-backed memoize storage on the pgx
// stdlib driver.
package postgrescache

import (
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/goforj/memoize/driver/sqlcache"
	"github.com/goforj/memoize/memocore"
)

// Config configures a postgres-backed storage.
type Config struct {
	// DSN is the postgres connection string.
	DSN string
	// Table holds the records. Defaults to "memo_entries".
	Table string
	// Prefix namespaces keys within a shared table.
	Prefix string
}

// New builds a postgres-backed memocore.Storage.
func New(cfg Config) (memocore.Storage, error) {
	return sqlcache.New(sqlcache.Config{
		DriverName: "pgx",
		DSN:        cfg.DSN,
		Table:      cfg.Table,
		Prefix:     cfg.Prefix,
	})
}
