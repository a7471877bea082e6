// Package history records completed scans in a SQLite database so runs can
// be listed and compared later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/panbanda/debtmap/internal/report"
	"github.com/panbanda/debtmap/pkg/models"
)

// ErrNotFound is returned when a run id or prefix matches nothing.
var ErrNotFound = errors.New("scan run not found")

// ErrAmbiguous is returned when a prefix matches more than one run.
var ErrAmbiguous = errors.New("scan run prefix is ambiguous")

// Run summarizes one recorded scan.
type Run struct {
	ID        string    `json:"id" yaml:"id" toon:"id"`
	Root      string    `json:"root" yaml:"root" toon:"root"`
	CommitSHA string    `json:"commitSha" yaml:"commitSha" toon:"commitSha"`
	ScannedAt time.Time `json:"scannedAt" yaml:"scannedAt" toon:"scannedAt"`
	TotalDebt int       `json:"totalDebt" yaml:"totalDebt" toon:"totalDebt"`
	Critical  int       `json:"critical" yaml:"critical" toon:"critical"`
	High      int       `json:"high" yaml:"high" toon:"high"`
}

// Store is a scan history database.
type Store struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		commit_sha TEXT NOT NULL DEFAULT '',
		scanned_at INTEGER NOT NULL,
		total_debt INTEGER NOT NULL,
		critical INTEGER NOT NULL,
		high INTEGER NOT NULL,
		report TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_root_scanned ON runs(root, scanned_at DESC)`,
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate history: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores dm as a new run for root.
func (s *Store) Record(ctx context.Context, root string, dm *models.DebtMap) (Run, error) {
	data, err := report.Marshal(dm)
	if err != nil {
		return Run{}, err
	}
	run := Run{
		ID:        uuid.New().String(),
		Root:      root,
		CommitSHA: dm.CommitSHA,
		ScannedAt: dm.ScannedAt.UTC(),
		TotalDebt: dm.Stats.TotalDebt,
		Critical:  dm.Stats.BySeverity[models.SeverityCritical],
		High:      dm.Stats.BySeverity[models.SeverityHigh],
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, root, commit_sha, scanned_at, total_debt, critical, high, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Root, run.CommitSHA, run.ScannedAt.UnixMilli(), run.TotalDebt, run.Critical, run.High, string(data))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// List returns runs for root, newest first. An empty root lists every run.
// A limit below 1 means no limit.
func (s *Store) List(ctx context.Context, root string, limit int) ([]Run, error) {
	query := `SELECT id, root, commit_sha, scanned_at, total_debt, critical, high FROM runs`
	var args []any
	if root != "" {
		query += ` WHERE root = ?`
		args = append(args, root)
	}
	query += ` ORDER BY scanned_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var ms int64
	if err := row.Scan(&run.ID, &run.Root, &run.CommitSHA, &ms, &run.TotalDebt, &run.Critical, &run.High); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.ScannedAt = time.UnixMilli(ms).UTC()
	return run, nil
}

// Resolve expands an id prefix to a full run id.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return "", fmt.Errorf("resolve run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve run: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// Get loads the full debt map recorded under id or a unique id prefix.
func (s *Store) Get(ctx context.Context, id string) (*models.DebtMap, error) {
	full, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	var data string
	err = s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, full).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return report.Parse([]byte(data))
}

// Latest returns the n most recent debt maps for root, newest first.
func (s *Store) Latest(ctx context.Context, root string, n int) ([]*models.DebtMap, error) {
	runs, err := s.List(ctx, root, n)
	if err != nil {
		return nil, err
	}
	maps := make([]*models.DebtMap, 0, len(runs))
	for _, run := range runs {
		dm, err := s.Get(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		maps = append(maps, dm)
	}
	return maps, nil
}

// Prune deletes all but the keep most recent runs for root and reports how
// many were removed.
func (s *Store) Prune(ctx context.Context, root string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE root = ? AND id NOT IN (
			SELECT id FROM runs WHERE root = ? ORDER BY scanned_at DESC, rowid DESC LIMIT ?
		)
	`, root, root, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(n), nil
}
