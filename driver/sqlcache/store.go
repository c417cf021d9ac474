// Package sqlcache provides a memoize storage backend on any database/sql
// driver. Records live in a single table (key, binary value, expiry in unix
// millis, 0 = never); the schema is created on construction when absent.
// Dialect-specific shims live in sqlitecache, postgrescache and mysqlcache.
package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/goforj/memoize/memocore"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config configures a SQL-backed storage.
type Config struct {
	// DriverName is the database/sql driver ("sqlite", "pgx", "mysql").
	DriverName string
	// DSN is the connection string.
	DSN string
	// Table holds the records. Defaults to "memo_entries".
	Table string
	// Prefix namespaces keys within a shared table.
	Prefix string
}

type store struct {
	db         *sql.DB
	driverName string
	prefix     string
	getStmt    *sql.Stmt
	setStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// New opens the database, ensures the schema and prepares statements.
func New(cfg Config) (memocore.Storage, error) {
	if cfg.DriverName == "" || cfg.DSN == "" {
		return nil, &memocore.ConfigurationError{Message: "sqlcache: driver name and dsn are required"}
	}
	table := cfg.Table
	if table == "" {
		table = "memo_entries"
	}
	if !identRE.MatchString(table) {
		return nil, &memocore.ConfigurationError{Message: fmt.Sprintf("sqlcache: invalid table name %q", table)}
	}
	db, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s := &store{db: db, driverName: cfg.DriverName, prefix: cfg.Prefix}
	if err := s.ensureSchema(table); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepare(table); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) ensureSchema(table string) error {
	var stmt string
	switch s.driverName {
	case "postgres", "pgx":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL,
			ea BIGINT NOT NULL
		);`, table)
	case "mysql":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k VARBINARY(255) PRIMARY KEY,
			v LONGBLOB NOT NULL,
			ea BIGINT NOT NULL
		) ENGINE=InnoDB;`, table)
	default: // sqlite
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			ea INTEGER NOT NULL
		);`, table)
	}
	_, err := s.db.Exec(stmt)
	return err
}

func (s *store) prepare(table string) error {
	var get, set, del string
	switch s.driverName {
	case "postgres", "pgx":
		get = fmt.Sprintf(`SELECT v, ea FROM %s WHERE k = $1`, table)
		set = fmt.Sprintf(`INSERT INTO %s (k, v, ea) VALUES ($1, $2, $3)
			ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, ea = EXCLUDED.ea`, table)
		del = fmt.Sprintf(`DELETE FROM %s WHERE k = $1`, table)
	case "mysql":
		get = fmt.Sprintf(`SELECT v, ea FROM %s WHERE k = ?`, table)
		set = fmt.Sprintf(`INSERT INTO %s (k, v, ea) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE v = VALUES(v), ea = VALUES(ea)`, table)
		del = fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, table)
	default: // sqlite
		get = fmt.Sprintf(`SELECT v, ea FROM %s WHERE k = ?`, table)
		set = fmt.Sprintf(`INSERT INTO %s (k, v, ea) VALUES (?, ?, ?)
			ON CONFLICT (k) DO UPDATE SET v = excluded.v, ea = excluded.ea`, table)
		del = fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, table)
	}
	var err error
	if s.getStmt, err = s.db.Prepare(get); err != nil {
		return err
	}
	if s.setStmt, err = s.db.Prepare(set); err != nil {
		return err
	}
	s.deleteStmt, err = s.db.Prepare(del)
	return err
}

func (s *store) Driver() memocore.Driver { return memocore.DriverSQL }

func (s *store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	var ea int64
	err := s.getStmt.QueryRowContext(ctx, s.storageKey(key)).Scan(&v, &ea)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if ea > 0 && time.Now().UnixMilli() > ea {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *store) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	var ea int64
	if expiresIn > 0 {
		ea = time.Now().Add(expiresIn).UnixMilli()
	}
	_, err := s.setStmt.ExecContext(ctx, s.storageKey(key), value, ea)
	return err
}

func (s *store) Delete(ctx context.Context, key string) error {
	_, err := s.deleteStmt.ExecContext(ctx, s.storageKey(key))
	return err
}

// Close releases the prepared statements and the pool.
func (s *store) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.setStmt, s.deleteStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *store) storageKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
