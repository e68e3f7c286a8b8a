package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"
)

// SQLBackend is a SQL-backed mirror backend.
// It works with any database/sql compatible driver (PostgreSQL, MySQL, SQLite).
// Expiry timestamps are stored as unix milliseconds so that every dialect
// compares them the same way; 0 means the entry never expires.
//
//	CREATE TABLE kodbox_mirror (
//	    id VARCHAR(255) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    expires_at BIGINT NOT NULL DEFAULT 0,
//	    updated_at BIGINT NOT NULL
//	);
//
// EnsureSchema creates the table for the configured dialect.
type SQLBackend struct {
	db              *sql.DB
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration
	closed          atomic.Bool
	done            chan struct{}
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// String returns the dialect name.
func (d SQLDialect) String() string {
	switch d {
	case DialectPostgreSQL:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("SQLDialect(%d)", int(d))
	}
}

// SQLBackendOption configures SQLBackend behavior.
type SQLBackendOption func(*sqlBackendConfig)

type sqlBackendConfig struct {
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration
}

// WithSQLTableName sets the table name for snapshot storage.
// Default: "kodbox_mirror".
func WithSQLTableName(name string) SQLBackendOption {
	return func(c *sqlBackendConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLBackendOption {
	return func(c *sqlBackendConfig) {
		c.dialect = dialect
	}
}

// WithSQLCleanupInterval sets how often expired rows are deleted.
// Default: 5 minutes. Zero disables the cleanup loop.
func WithSQLCleanupInterval(d time.Duration) SQLBackendOption {
	return func(c *sqlBackendConfig) {
		c.cleanupInterval = d
	}
}

// NewSQLBackend creates a new SQL-backed mirror backend.
func NewSQLBackend(db *sql.DB, opts ...SQLBackendOption) *SQLBackend {
	cfg := &sqlBackendConfig{
		tableName:       "kodbox_mirror",
		dialect:         DialectPostgreSQL,
		cleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	b := &SQLBackend{
		db:              db,
		tableName:       cfg.tableName,
		dialect:         cfg.dialect,
		cleanupInterval: cfg.cleanupInterval,
		done:            make(chan struct{}),
	}

	if b.cleanupInterval > 0 {
		go b.cleanupLoop()
	}
	return b
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLBackend) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

// EnsureSchema creates the mirror table if it doesn't exist.
func (s *SQLBackend) EnsureSchema(ctx context.Context) error {
	if s.closed.Load() {
		return ErrBackendClosed{}
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(255) PRIMARY KEY,
				data BYTEA NOT NULL,
				expires_at BIGINT NOT NULL DEFAULT 0,
				updated_at BIGINT NOT NULL
			)
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(255) PRIMARY KEY,
				data LONGBLOB NOT NULL,
				expires_at BIGINT NOT NULL DEFAULT 0,
				updated_at BIGINT NOT NULL
			)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				expires_at INTEGER NOT NULL DEFAULT 0,
				updated_at INTEGER NOT NULL
			)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save stores data with an expiration time.
func (s *SQLBackend) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrBackendClosed{}
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (id, data, expires_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				data = EXCLUDED.data,
				expires_at = EXCLUDED.expires_at,
				updated_at = EXCLUDED.updated_at
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (id, data, expires_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				data = VALUES(data),
				expires_at = VALUES(expires_at),
				updated_at = VALUES(updated_at)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (id, data, expires_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, key, data, unixMillis(expiresAt), time.Now().UnixMilli())
	return err
}

// Load retrieves data if it exists and hasn't expired.
func (s *SQLBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrBackendClosed{}
	}

	query := fmt.Sprintf(`
		SELECT data FROM %s
		WHERE id = %s AND (expires_at = 0 OR expires_at > %s)
	`, s.tableName, s.placeholder(1), s.placeholder(2))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key, time.Now().UnixMilli()).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}

	return data, nil
}

// Delete removes a key from the database.
func (s *SQLBackend) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrBackendClosed{}
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Close stops the cleanup loop.
// Note: This does not close the underlying database connection,
// as it may be shared with other components.
func (s *SQLBackend) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	return nil
}

// cleanupLoop periodically removes expired rows.
func (s *SQLBackend) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

// cleanup removes expired rows from the database.
func (s *SQLBackend) cleanup() {
	if s.closed.Load() {
		return
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <> 0 AND expires_at < %s`,
		s.tableName, s.placeholder(1))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.db.ExecContext(ctx, query, time.Now().UnixMilli())
}

// unixMillis converts an expiry to its stored form; zero stays zero.
func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
