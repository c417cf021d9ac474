// Package mysqlcache builds a SQL-backed memoize storage on the go-sql-driver
// mysql driver.
package mysqlcache

import (
	_ "github.com/go-sql-driver/mysql"

	"github.com/goforj/memoize/driver/sqlcache"
	"github.com/goforj/memoize/memocore"
)

// Config configures a mysql-backed storage.
type Config struct {
	// DSN is the mysql connection string.
	DSN string
	// Table holds the records. Defaults to "memo_entries".
	Table string
	// Prefix namespaces keys within a shared table.
	Prefix string
}

// New builds a mysql-backed memocore.Storage.
func New(cfg Config) (memocore.Storage, error) {
	return sqlcache.New(sqlcache.Config{
		DriverName: "mysql",
		DSN:        cfg.DSN,
		Table:      cfg.Table,
		Prefix:     cfg.Prefix,
	})
}
