package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrRunNotFinished is returned when pruning against a run that has not been
// finished.
var ErrRunNotFinished = errors.New("run not finished")

// SetupSchema creates the ledger tables. It is idempotent and safe to call on
// an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaRuns = `
CREATE TABLE IF NOT EXISTS gen_runs (
    run_id INTEGER PRIMARY KEY,
    source_root TEXT NOT NULL,
    dest_root TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    rendered INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    unchanged INTEGER NOT NULL DEFAULT 0
);
`
		schemaOutputs = `
CREATE TABLE IF NOT EXISTS gen_outputs (
    output_path TEXT PRIMARY KEY,
    dest_root TEXT NOT NULL,
    template_id TEXT NOT NULL,
    vars_hash TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    run_id INTEGER NOT NULL,
    generated_at INTEGER NOT NULL
);
`
		indexOutputs = `CREATE INDEX IF NOT EXISTS gen_outputs_dest ON gen_outputs (dest_root, run_id);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaRuns); err != nil {
		return fmt.Errorf("could not create runs schema: %w", err)
	}
	if _, err = tx.Exec(schemaOutputs); err != nil {
		return fmt.Errorf("could not create outputs schema: %w", err)
	}
	if _, err = tx.Exec(indexOutputs); err != nil {
		return fmt.Errorf("could not create outputs index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Ledger holds the database connection and the prepared statements used by
// runs, pruning and statistics.
type Ledger struct {
	db              *sql.DB
	stmtBeginRun    *sql.Stmt
	stmtFinishRun   *sql.Stmt
	stmtLookup      *sql.Stmt
	stmtUpsert      *sql.Stmt
	stmtTouch       *sql.Stmt
	stmtGetOutput   *sql.Stmt
	stmtCountRuns   *sql.Stmt
	stmtCountOutput *sql.Stmt
	stmtPerTemplate *sql.Stmt
	stmtRecentRuns  *sql.Stmt
	logger          *slog.Logger
}

// NewLedger prepares all statements against db. SetupSchema must have been
// called on db first.
func NewLedger(db *sql.DB) (*Ledger, error) {
	l := &Ledger{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&l.stmtBeginRun, `INSERT INTO gen_runs (source_root, dest_root, started_at) VALUES (?, ?, ?) RETURNING run_id;`},
		{&l.stmtFinishRun, `UPDATE gen_runs SET finished_at = ?, rendered = ?, skipped = ?, unchanged = ? WHERE run_id = ?;`},
		{&l.stmtLookup, `SELECT content_hash FROM gen_outputs WHERE output_path = ?;`},
		{&l.stmtUpsert, `INSERT INTO gen_outputs (output_path, dest_root, template_id, vars_hash, content_hash, run_id, generated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(output_path) DO UPDATE SET
    dest_root = excluded.dest_root,
    template_id = excluded.template_id,
    vars_hash = excluded.vars_hash,
    content_hash = excluded.content_hash,
    run_id = excluded.run_id,
    generated_at = excluded.generated_at;`},
		{&l.stmtTouch, `UPDATE gen_outputs SET run_id = ?, vars_hash = ? WHERE output_path = ?;`},
		{&l.stmtGetOutput, `SELECT output_path, dest_root, template_id, vars_hash, content_hash, run_id, generated_at FROM gen_outputs WHERE output_path = ?;`},
		{&l.stmtCountRuns, `SELECT COUNT(*) FROM gen_runs;`},
		{&l.stmtCountOutput, `SELECT COUNT(*) FROM gen_outputs;`},
		{&l.stmtPerTemplate, `SELECT template_id, COUNT(*) FROM gen_outputs GROUP BY template_id;`},
		{&l.stmtRecentRuns, `SELECT run_id, source_root, dest_root, started_at, finished_at, rendered, skipped, unchanged FROM gen_runs ORDER BY run_id DESC LIMIT ?;`},
	}
	for _, s := range stmts {
		stmt, err := db.Prepare(s.query)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*s.dst = stmt
	}
	return l, nil
}

// Close releases all prepared statements. The database itself stays open.
func (l *Ledger) Close() {
	for _, stmt := range []*sql.Stmt{
		l.stmtBeginRun, l.stmtFinishRun, l.stmtLookup, l.stmtUpsert, l.stmtTouch,
		l.stmtGetOutput, l.stmtCountRuns, l.stmtCountOutput, l.stmtPerTemplate, l.stmtRecentRuns,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Ledger. By default, all logs are discarded.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}
