package ledger

import (
	"context"
	"database/sql"
	"time"
)

// OutputRecord is the ledger's entry for one generated file.
type OutputRecord struct {
	Path        string    `json:"path"`
	DestRoot    string    `json:"dest_root"`
	TemplateID  string    `json:"template_id"`
	VarsHash    string    `json:"vars_hash"`
	ContentHash string    `json:"content_hash"`
	RunID       int64     `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Stats holds aggregated statistics for the whole ledger.
type Stats struct {
	Runs       int            `json:"runs"`
	Outputs    int            `json:"outputs"`
	Templates  map[string]int `json:"templates"` // template id -> outputs currently recorded
	RecentRuns []RunInfo      `json:"recent_runs"`
}

// recentRunLimit bounds how many runs GetStats reports individually.
const recentRunLimit = 10

// GetOutput returns the record for path, or sql.ErrNoRows if the ledger has
// never seen it.
func (l *Ledger) GetOutput(ctx context.Context, path string) (OutputRecord, error) {
	var rec OutputRecord
	var generated int64
	err := l.stmtGetOutput.QueryRowContext(ctx, path).Scan(
		&rec.Path, &rec.DestRoot, &rec.TemplateID, &rec.VarsHash, &rec.ContentHash, &rec.RunID, &generated)
	if err != nil {
		return OutputRecord{}, err
	}
	rec.GeneratedAt = time.UnixMilli(generated).UTC()
	return rec, nil
}

// GetRuns returns up to limit runs, newest first.
func (l *Ledger) GetRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	rows, err := l.stmtRecentRuns.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	runs := make([]RunInfo, 0)
	for rows.Next() {
		var info RunInfo
		var started int64
		var finished sql.NullInt64
		if err = rows.Scan(&info.ID, &info.SourceRoot, &info.DestRoot, &started, &finished,
			&info.Rendered, &info.Skipped, &info.Unchanged); err != nil {
			return nil, err
		}
		info.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			info.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		runs = append(runs, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetStats returns a snapshot of statistics for the entire ledger.
func (l *Ledger) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Templates: make(map[string]int)}

	if err := l.stmtCountRuns.QueryRowContext(ctx).Scan(&stats.Runs); err != nil {
		return nil, err
	}
	if err := l.stmtCountOutput.QueryRowContext(ctx).Scan(&stats.Outputs); err != nil {
		return nil, err
	}

	rows, err := l.stmtPerTemplate.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		var n int
		if err = rows.Scan(&id, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.Templates[id] = n
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if stats.RecentRuns, err = l.GetRuns(ctx, recentRunLimit); err != nil {
		return nil, err
	}
	return stats, nil
}
