package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CTAG07/gentpl/pkg/codegen"
)

// RunInfo describes one generation run as stored in the ledger.
type RunInfo struct {
	ID         int64     `json:"id"`
	SourceRoot string    `json:"source_root"`
	DestRoot   string    `json:"dest_root"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"` // zero while the run is in progress or was abandoned
	Rendered   int       `json:"rendered"`
	Skipped    int       `json:"skipped"`
	Unchanged  int       `json:"unchanged"`
}

// Finished reports whether the run completed.
func (r RunInfo) Finished() bool { return !r.FinishedAt.IsZero() }

// Run tracks the outputs of a single generation run. It implements
// codegen.Tracker and is safe for concurrent use by the engine's workers.
type Run struct {
	ledger *Ledger

	mu   sync.Mutex
	info RunInfo
}

var _ codegen.Tracker = (*Run)(nil)

// BeginRun records the start of a run generating from src into dest.
func (l *Ledger) BeginRun(ctx context.Context, src, dest string) (*Run, error) {
	now := time.Now().UTC()
	var id int64
	if err := l.stmtBeginRun.QueryRowContext(ctx, src, dest, now.UnixMilli()).Scan(&id); err != nil {
		return nil, fmt.Errorf("could not begin run: %w", err)
	}

	l.logger.InfoContext(ctx, "Run started",
		slog.Int64("run_id", id),
		slog.String("source", src),
		slog.String("dest", dest),
	)

	return &Run{
		ledger: l,
		info: RunInfo{
			ID:         id,
			SourceRoot: src,
			DestRoot:   dest,
			StartedAt:  time.UnixMilli(now.UnixMilli()).UTC(),
		},
	}, nil
}

// ID returns the ledger id of the run.
func (r *Run) ID() int64 { return r.info.ID }

// Info returns a snapshot of the run's metadata and counters.
func (r *Run) Info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

func (r *Run) Rendered() int  { return r.Info().Rendered }
func (r *Run) Skipped() int   { return r.Info().Skipped }
func (r *Run) Unchanged() int { return r.Info().Unchanged }

// AddSkipped counts template instances whose assumptions did not hold. The
// engine never tracks those, so the caller reports them.
func (r *Run) AddSkipped(n int) {
	r.mu.Lock()
	r.info.Skipped += n
	r.mu.Unlock()
}

// Lookup returns the content hash last recorded for path.
func (r *Run) Lookup(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := r.ledger.stmtLookup.QueryRowContext(ctx, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// Track records an output as produced by this run.
func (r *Run) Track(ctx context.Context, out codegen.TrackedOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info.Finished() {
		return fmt.Errorf("run %d: track after finish", r.info.ID)
	}

	if out.Unchanged {
		if _, err := r.ledger.stmtTouch.ExecContext(ctx, r.info.ID, out.VarsHash, out.Path); err != nil {
			return fmt.Errorf("could not touch output %s: %w", out.Path, err)
		}
		r.info.Unchanged++
		return nil
	}

	_, err := r.ledger.stmtUpsert.ExecContext(ctx,
		out.Path, r.info.DestRoot, out.Template, out.VarsHash, out.ContentHash,
		r.info.ID, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("could not record output %s: %w", out.Path, err)
	}
	r.info.Rendered++
	return nil
}

// Finish stores the run's counters and marks it complete. Only finished runs
// can be used for pruning.
func (r *Run) Finish(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info.Finished() {
		return nil
	}
	now := time.UnixMilli(time.Now().UTC().UnixMilli()).UTC()
	_, err := r.ledger.stmtFinishRun.ExecContext(ctx,
		now.UnixMilli(), r.info.Rendered, r.info.Skipped, r.info.Unchanged, r.info.ID)
	if err != nil {
		return fmt.Errorf("could not finish run %d: %w", r.info.ID, err)
	}
	r.info.FinishedAt = now

	r.ledger.logger.InfoContext(ctx, "Run finished",
		slog.Int64("run_id", r.info.ID),
		slog.Int("rendered", r.info.Rendered),
		slog.Int("unchanged", r.info.Unchanged),
		slog.Int("skipped", r.info.Skipped),
		slog.Duration("elapsed", now.Sub(r.info.StartedAt)),
	)
	return nil
}
