// Package history persists an append-only audit trail of wallet bindings
// and balance queries. It is operational data only: the bot never reads it
// back to make decisions, so sessions stay memory-resident as designed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"solbot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bindings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL,
		address     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_bindings_user ON bindings(user_id, created_at);

	CREATE TABLE IF NOT EXISTS balance_queries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		address     TEXT NOT NULL,
		sol         REAL,
		ok          INTEGER NOT NULL,
		detail      TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_queries_time ON balance_queries(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordBinding(ctx context.Context, userID int64, address string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bindings (user_id, address, created_at) VALUES (?, ?, ?)`,
		userID, address, time.Now(),
	)
	return err
}

func (s *SQLiteStore) RecordQuery(ctx context.Context, rec domain.QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_queries (address, sol, ok, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Address, rec.Sol, rec.OK, rec.Detail, rec.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListBindings(ctx context.Context, limit int) ([]domain.BindingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, address, created_at FROM bindings ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BindingRecord
	for rows.Next() {
		var r domain.BindingRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Address, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListQueries(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, address, sol, ok, detail, created_at FROM balance_queries ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueryRecord
	for rows.Next() {
		var r domain.QueryRecord
		var detail sql.NullString
		if err := rows.Scan(&r.ID, &r.Address, &r.Sol, &r.OK, &detail, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Detail = detail.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Nop is a HistoryStore that discards everything, used when history is
// disabled in config.
type Nop struct{}

func (Nop) RecordBinding(context.Context, int64, string) error { return nil }
func (Nop) RecordQuery(context.Context, domain.QueryRecord) error {
	return nil
}
func (Nop) ListBindings(context.Context, int) ([]domain.BindingRecord, error) { return nil, nil }
func (Nop) ListQueries(context.Context, int) ([]domain.QueryRecord, error)    { return nil, nil }
func (Nop) Close() error                                                      { return nil }
