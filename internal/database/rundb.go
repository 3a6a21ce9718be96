package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "sitecrawl.db"

// storedTimeLayout is fixed width so that text ordering matches time ordering.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("crawl run not found")

// RunDB stores one row per crawl run. Page contents are never persisted;
// the page stream belongs to the consumer.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that `history` can read
	// while a crawl is writing.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Close closes the database connection.
func (r *RunDB) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *RunDB) Path() string {
	return r.dbPath
}

func (r *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		transport TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		distinct_content INTEGER NOT NULL,
		links INTEGER NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL,
		hosts TEXT,
		kinds TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON crawl_runs(start_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON crawl_runs(started_at);
	`
	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// Run is one stored crawl run.
type Run struct {
	ID              string           `json:"id"`
	StartURL        string           `json:"start_url"`
	Transport       string           `json:"transport"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Elapsed         time.Duration    `json:"elapsed"`
	Pages           int              `json:"pages"`
	DistinctContent int              `json:"distinct_content"`
	Links           int              `json:"links"`
	Failed          int              `json:"failed"`
	Skipped         int              `json:"skipped"`
	Reason          model.StopReason `json:"reason"`
	Hosts           map[string]int   `json:"hosts"`
	Kinds           map[string]int   `json:"kinds"`
}

// NewRun builds a Run from a finished summary.
func NewRun(s *model.Summary) *Run {
	return &Run{
		ID:              s.RunID,
		StartURL:        s.StartURL,
		Transport:       s.Transport,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
		Elapsed:         s.Elapsed,
		Pages:           s.Pages,
		DistinctContent: s.DistinctContent,
		Links:           s.Links,
		Failed:          s.Failed,
		Skipped:         s.Skipped,
		Reason:          s.Reason,
		Hosts:           s.Hosts,
		Kinds:           s.Kinds,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun inserts a run. An empty ID is replaced with NewRunID.
func (r *RunDB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	hostsJSON, err := json.Marshal(run.Hosts)
	if err != nil {
		return fmt.Errorf("failed to serialize hosts: %w", err)
	}
	kindsJSON, err := json.Marshal(run.Kinds)
	if err != nil {
		return fmt.Errorf("failed to serialize kinds: %w", err)
	}

	query := `
	INSERT INTO crawl_runs (id, start_url, transport, started_at, finished_at, elapsed_ms,
		pages, distinct_content, links, failed, skipped, reason, hosts, kinds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.StartURL,
		run.Transport,
		run.StartedAt.UTC().Format(storedTimeLayout),
		run.FinishedAt.UTC().Format(storedTimeLayout),
		run.Elapsed.Milliseconds(),
		run.Pages,
		run.DistinctContent,
		run.Links,
		run.Failed,
		run.Skipped,
		run.Reason.String(),
		string(hostsJSON),
		string(kindsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}
	return nil
}

const runColumns = `id, start_url, transport, started_at, finished_at, elapsed_ms,
	pages, distinct_content, links, failed, skipped, reason, hosts, kinds`

// GetRun retrieves a run by id.
func (r *RunDB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns runs newest first. An empty startURL lists every seed.
// limit <= 0 means no limit.
func (r *RunDB) ListRuns(ctx context.Context, startURL string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs`
	var args []any
	if startURL != "" {
		query += ` WHERE start_url = ?`
		args = append(args, startURL)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListSeeds returns every start URL that has at least one run.
func (r *RunDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT start_url FROM crawl_runs ORDER BY start_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                   Run
		startedAt, finishedAt string
		elapsedMS             int64
		reason                string
		hosts, kinds          sql.NullString
	)
	err := row.Scan(&run.ID, &run.StartURL, &run.Transport, &startedAt, &finishedAt, &elapsedMS,
		&run.Pages, &run.DistinctContent, &run.Links, &run.Failed, &run.Skipped, &reason, &hosts, &kinds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan crawl run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.Reason, _ = model.ParseStopReason(reason)
	run.Hosts = decodeCounts(hosts)
	run.Kinds = decodeCounts(kinds)
	return &run, nil
}

func decodeCounts(s sql.NullString) map[string]int {
	m := make(map[string]int)
	if s.Valid && s.String != "" {
		if err := json.Unmarshal([]byte(s.String), &m); err != nil {
			return make(map[string]int)
		}
	}
	return m
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
