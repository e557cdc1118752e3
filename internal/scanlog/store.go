package scanlog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lunedor/plex-parity/internal/scan"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump on schema changes;
// an old database must be deleted rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// version of the schema.
var ErrSchemaMismatch = errors.New("scan log schema version mismatch")

// Store is the durable scan-run log backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the scan log database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create scan log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Insert appends one finished scan record.
func (s *Store) Insert(ctx context.Context, record *scan.Record) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	failures, err := json.Marshal(record.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (
            id, mode, scope, target_show, started_at, finished_at,
            shows_selected, shows_visited, shows_skipped, shows_failed,
            shows_pruned, seasons_audited, episodes_added, episodes_promoted,
            failures_json, outcome
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		string(record.Mode),
		string(record.Scope),
		record.TargetShow,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.FinishedAt.UTC().Format(time.RFC3339Nano),
		record.ShowsSelected,
		record.ShowsVisited,
		record.ShowsSkipped,
		record.ShowsFailed,
		record.ShowsPruned,
		record.SeasonsAudited,
		record.EpisodesAdded,
		record.EpisodesPromoted,
		string(failures),
		string(record.Outcome),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

// Recent returns up to limit scan records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*scan.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, scope, target_show, started_at, finished_at,
	            shows_selected, shows_visited, shows_skipped, shows_failed,
	            shows_pruned, seasons_audited, episodes_added, episodes_promoted,
	            failures_json, outcome
	     FROM scan_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	var records []*scan.Record
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan runs: %w", err)
	}
	return records, nil
}

func scanRow(rows *sql.Rows) (*scan.Record, error) {
	var (
		record            scan.Record
		mode, scope       string
		started, finished string
		failuresJSON      string
		outcome           string
	)
	if err := rows.Scan(
		&record.ID, &mode, &scope, &record.TargetShow, &started, &finished,
		&record.ShowsSelected, &record.ShowsVisited, &record.ShowsSkipped, &record.ShowsFailed,
		&record.ShowsPruned, &record.SeasonsAudited, &record.EpisodesAdded, &record.EpisodesPromoted,
		&failuresJSON, &outcome,
	); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	record.Mode = scan.Mode(mode)
	record.Scope = scan.Scope(scope)
	record.Outcome = scan.Outcome(outcome)

	var err error
	if record.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if record.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(failuresJSON), &record.Failures); err != nil {
		return nil, fmt.Errorf("parse failures: %w", err)
	}
	return &record, nil
}
