package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// stmtCacheSize bounds the prepared-statement LRU. Compiled queries
// repeat heavily (the builder caches per-description SQL), so a small
// cache covers a working set comfortably.
const stmtCacheSize = 128

// slowQuery is the elapsed time above which a query is logged.
const slowQuery = 250 * time.Millisecond

// Store provides durable storage for the provenance graph.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db    *sql.DB
	stmts *lru.Cache
	log   zerolog.Logger
}

// Open creates or opens a SQLite database at the given path. The path
// ":memory:" yields a private in-memory database, which stays alive
// because the pool is pinned to one connection.
//
// Applies required pragmas and migrations automatically; safe to call
// multiple times on the same path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Pragmas are per-connection and SQLite allows one writer at a
	// time, so pin the pool to a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	stmts, err := lru.NewWithEvict(stmtCacheSize, func(_ any, value any) {
		value.(*sql.Stmt).Close()
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build statement cache: %w", err)
	}

	return &Store{
		db:    db,
		stmts: stmts,
		log:   log.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the statement cache and the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if s.stmts != nil {
		s.stmts.Purge()
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Query executes a compiled statement through the prepared-statement
// cache. Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := s.prepared(ctx, query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := stmt.QueryContext(ctx, args...)
	s.observe(query, start, err)
	return rows, err
}

// QueryRow executes a single-row statement through the cache.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	stmt, err := s.prepared(ctx, query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	row := stmt.QueryRowContext(ctx, args...)
	s.observe(query, start, nil)
	return row, nil
}

func (s *Store) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	if v, ok := s.stmts.Get(query); ok {
		return v.(*sql.Stmt), nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	s.stmts.Add(query, stmt)
	return stmt, nil
}

func (s *Store) observe(query string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		s.log.Debug().Err(err).Dur("elapsed", elapsed).Str("sql", query).Msg("query failed")
		return
	}
	if elapsed >= slowQuery {
		s.log.Warn().Dur("elapsed", elapsed).Str("sql", query).Msg("slow query")
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA case_sensitive_like = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
