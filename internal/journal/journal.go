// Package journal keeps a SQLite record of every batch run: the rendered
// digest, whether it was delivered, and the per-item outcomes. Digests that
// were rendered but never delivered can be replayed by the next run.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ryosukesatoh/raindrop-digest/internal/digest"
)

// Run is one recorded batch run.
type Run struct {
	ID        string
	StartedAt time.Time
	Subject   string
	Body      string
	Sent      bool
	SentAt    time.Time
	Outcomes  []digest.Outcome
}

// Journal is a concrete SQLite store. The batch job is sequential, so a
// single connection is enough.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and creates its tables.
// ":memory:" gives a private in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: enable WAL mode: %w", err)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create tables: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		sent INTEGER NOT NULL DEFAULT 0,
		sent_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_sent ON runs(sent, started_at);

	CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		link TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		error TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_item ON outcomes(item_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Record stores a rendered digest as unsent together with its outcomes.
// An empty ID is replaced by a new one; the ID used is returned.
func (j *Journal) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, subject, body, sent) VALUES (?, ?, ?, ?, 0)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Subject, run.Body)
	if err != nil {
		return "", fmt.Errorf("journal: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (run_id, position, item_id, link, title, status, reason, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("journal: prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range run.Outcomes {
		_, err := stmt.ExecContext(ctx, run.ID, i, o.Item.ID, o.Item.Link, o.Item.Title,
			string(o.Status), string(o.Reason), o.Error)
		if err != nil {
			return "", fmt.Errorf("journal: insert outcome %d: %w", o.Item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("journal: commit: %w", err)
	}
	return run.ID, nil
}

// MarkSent flags a run's digest as delivered.
func (j *Journal) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET sent = 1, sent_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("journal: mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: run %s not found", id)
	}
	return nil
}

// Unsent returns the runs whose digest was never delivered, oldest first.
// Outcomes are not loaded.
func (j *Journal) Unsent(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, subject, body FROM runs WHERE sent = 0 ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("journal: query unsent: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Subject, &r.Body); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("journal: run %s: bad started_at %q: %w", r.ID, started, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// OutcomeRecord is a stored per-item outcome.
type OutcomeRecord struct {
	RunID  string
	ItemID int64
	Link   string
	Title  string
	Status digest.Status
	Reason digest.Reason
	Error  string
}

// History returns every recorded outcome for a bookmark, oldest run first.
func (j *Journal) History(ctx context.Context, itemID int64) ([]OutcomeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT o.run_id, o.item_id, o.link, o.title, o.status, COALESCE(o.reason, ''), COALESCE(o.error, '')
		FROM outcomes o JOIN runs r ON r.id = o.run_id
		WHERE o.item_id = ?
		ORDER BY r.started_at ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("journal: query history: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var rec OutcomeRecord
		var status, reason string
		if err := rows.Scan(&rec.RunID, &rec.ItemID, &rec.Link, &rec.Title, &status, &reason, &rec.Error); err != nil {
			return nil, fmt.Errorf("journal: scan outcome: %w", err)
		}
		rec.Status = digest.Status(status)
		rec.Reason = digest.Reason(reason)
		out = append(out, rec)
	}
	return out, rows.Err()
}
