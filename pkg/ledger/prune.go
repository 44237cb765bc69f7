package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// PruneStale forgets every output below the run's destination root that the
// run did not produce, and returns their paths so the caller can delete the
// files. The run must be finished; pruning against a failed run would drop
// outputs that were simply not reached.
func (l *Ledger) PruneStale(ctx context.Context, run *Run) ([]string, error) {
	info := run.Info()
	if !info.Finished() {
		return nil, fmt.Errorf("run %d: %w", info.ID, ErrRunNotFinished)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	rows, err := tx.QueryContext(ctx,
		`SELECT output_path FROM gen_outputs WHERE dest_root = ? AND run_id <> ? ORDER BY output_path`,
		info.DestRoot, info.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale outputs: %w", err)
	}

	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan stale output: %w", err)
		}
		stale = append(stale, p)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating stale outputs: %w", err)
	}

	if len(stale) == 0 {
		l.logger.InfoContext(ctx, "No stale outputs to prune",
			slog.Int64("run_id", info.ID),
		)
		return nil, tx.Commit()
	}

	if err := l.batchDelete(ctx, tx, "gen_outputs", "output_path", stringSliceToInterface(stale)); err != nil {
		return nil, fmt.Errorf("failed to prune stale outputs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Stale outputs pruned",
		slog.Int64("run_id", info.ID),
		slog.String("dest", info.DestRoot),
		slog.Int("outputs_removed", len(stale)),
	)
	return stale, nil
}

// batchDelete deletes rows whose column matches any of ids, splitting the list
// to stay below SQLite's variable limit.
func (l *Ledger) batchDelete(ctx context.Context, tx *sql.Tx, table, column string, ids []interface{}) error {
	if len(ids) == 0 {
		return nil
	}

	// SQLite's default variable limit is 999, so around half that is good
	const batchSize = 500

	for i := 0; i < len(ids); i += batchSize {
		end := min(i+batchSize, len(ids))
		batch := ids[i:end]

		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (?%s)", table, column, strings.Repeat(",?", len(batch)-1))
		if _, err := tx.ExecContext(ctx, query, batch...); err != nil {
			return err
		}
	}
	return nil
}

func stringSliceToInterface(s []string) []interface{} {
	if s == nil {
		return nil
	}
	i := make([]interface{}, len(s))
	for j, v := range s {
		i[j] = v
	}
	return i
}
