package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/traceability-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens a SQLite ledger at the given path and configures WAL mode.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "history: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "history: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	status      TEXT NOT NULL DEFAULT 'running',
	total       INTEGER NOT NULL DEFAULT 0,
	linked      INTEGER NOT NULL DEFAULT 0,
	unlinked    INTEGER NOT NULL DEFAULT 0,
	perfect     INTEGER NOT NULL DEFAULT 0,
	suggestions INTEGER NOT NULL DEFAULT 0,
	artifact    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "history: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt, string(run.Status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "history: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) Finish(ctx context.Context, runID string, summary model.Summary, artifact string, runErr error) error {
	status := StatusComplete
	errMsg := ""
	if runErr != nil {
		status = StatusFailed
		errMsg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, total = ?, linked = ?, unlinked = ?,
		 perfect = ?, suggestions = ?, artifact = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), string(status),
		summary.Total, summary.Linked, summary.Unlinked,
		summary.PerfectMatches, summary.SuggestionCount,
		artifact, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "history: finish run %s", runID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "history: rows affected")
	}
	if n == 0 {
		return eris.Errorf("history: run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, total, linked, unlinked,
		 perfect, suggestions, artifact, error
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "history: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status,
			&r.Total, &r.Linked, &r.Unlinked, &r.Perfect, &r.Suggestions,
			&r.Artifact, &r.Error)
		if err != nil {
			return nil, eris.Wrap(err, "history: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "history: list runs iterate")
}
