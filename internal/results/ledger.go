package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"siem-mcp/internal/siemerr"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Record describes one persisted result file.
type Record struct {
	ID        string    `json:"id"`
	Backend   string    `json:"backend"`
	Path      string    `json:"path"`
	Query     string    `json:"query"`
	Count     int64     `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger indexes saved result files in SQLite so they can be listed and
// summarized later.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database at dbPath.
func OpenLedger(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, siemerr.Persistence("create ledger directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, siemerr.Persistence("open ledger database", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, siemerr.Persistence("ping ledger database", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, siemerr.Persistence("migrate ledger database", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			backend TEXT NOT NULL,
			path TEXT NOT NULL UNIQUE,
			query TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_backend_created ON results(backend, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a result entry, filling ID and CreatedAt when unset.
func (l *Ledger) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO results (id, backend, path, query, count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Backend, rec.Path, rec.Query, rec.Count, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Record{}, siemerr.Persistence("insert ledger record", err)
	}
	return rec, nil
}

// List returns the most recent records, newest first. An empty backend
// matches every backend.
func (l *Ledger) List(ctx context.Context, backend string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, backend, path, query, count, created_at FROM results`
	args := []any{}
	if backend != "" {
		query += ` WHERE backend = ?`
		args = append(args, backend)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, siemerr.Persistence("query ledger", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Backend, &rec.Path, &rec.Query, &rec.Count, &created); err != nil {
			return nil, siemerr.Persistence("scan ledger row", err)
		}
		rec.CreatedAt = time.Unix(0, created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, siemerr.Persistence("iterate ledger rows", err)
	}
	return out, nil
}

// ByPath looks up the record for a saved file.
func (l *Ledger) ByPath(ctx context.Context, path string) (*Record, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, backend, path, query, count, created_at FROM results WHERE path = ?`, path)

	var (
		rec     Record
		created int64
	)
	if err := row.Scan(&rec.ID, &rec.Backend, &rec.Path, &rec.Query, &rec.Count, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, siemerr.NotFound(fmt.Sprintf("no ledger record for %q", path), nil)
		}
		return nil, siemerr.Persistence("query ledger", err)
	}
	rec.CreatedAt = time.Unix(0, created)
	return &rec, nil
}
