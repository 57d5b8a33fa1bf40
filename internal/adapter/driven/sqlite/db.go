package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// DB holds separate writer and reader pools over one SQLite database. The
// writer is capped at one connection so writes serialize instead of failing
// with "database is locked".
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// MemoryPath opens a fresh in-memory database instead of a file. Each NewDB
// call gets its own database; nothing is shared with other DBs in the process.
//
// Both pools reach it through SQLite's shared cache, which locks per table
// and reports SQLITE_LOCKED rather than SQLITE_BUSY. busy_timeout therefore
// does not apply: a read that overlaps an open write transaction spins until
// the transaction ends. Fine for short-lived runs, not for concurrent load.
const MemoryPath = ":memory:"

var memorySeq atomic.Uint64

// Shared pragmas. journal_mode(WAL) is added for file databases only.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"

// NewDB opens the database at dbPath with a single-connection writer and a
// small reader pool. File databases use WAL mode. MemoryPath yields an
// in-memory database that lives as long as the DB.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath == MemoryPath {
		name := fmt.Sprintf("repomover-%d", memorySeq.Add(1))
		return openDB(ctx, memoryDSN(name), dbPath)
	}
	return openDB(ctx, fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", dbPath, pragmas), dbPath)
}

// memoryDSN names a shared-cache in-memory database so the writer and reader
// pools see the same data. The name is escaped so it cannot inject query
// parameters.
func memoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(name), pragmas)
}

func openDB(ctx context.Context, dsn, path string) (*DB, error) {
	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	reader, err := openPool(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("reader: %w", err)
	}

	return &DB{
		Writer: writer,
		Reader: reader,
		path:   path,
	}, nil
}

func openPool(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pool.SetMaxOpenConns(maxOpen)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Path returns the path the DB was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// parseTime parses the timestamp layouts SQLite and the driver produce.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

// Ping verifies both connection pools can reach the database.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}
