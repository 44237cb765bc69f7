package codegen

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// VarSet is one variable binding for a generation run, as read from a
// variables file: base values plus optional per-template import overrides.
type VarSet struct {
	Vars    map[string]any            `json:"vars" yaml:"vars"`
	Context map[string]map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
}

// Report summarizes a generation run.
type Report struct {
	Templates int
	Outputs   []string // in template walk order, then variable set order
	Rendered  int
	Skipped   int
	Unchanged int
}

// Defaults returns the variables every template gets unless overridden:
// `$now$` and `$source_template$`.
func Defaults(id string, now time.Time) Variables {
	return VarsOf(
		"now", now.Format(time.RFC3339),
		"source_template", path.Base(id),
	)
}

// TemplateIDs lists every template below the source root.
func (e *Engine) TemplateIDs() ([]string, error) {
	var ids []string
	err := e.fs.Walk(e.sourceRoot, func(p string) error {
		rel, err := filepath.Rel(e.sourceRoot, p)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk %s: %w", e.sourceRoot, err)
	}
	return ids, nil
}

// Bind turns the set into the variables for rendering template id: the
// defaults, overridden by the set's values, plus its import overrides.
func (s VarSet) Bind(id string, now time.Time) TemplateVars {
	var overrides map[string]Variables
	if len(s.Context) > 0 {
		overrides = make(map[string]Variables, len(s.Context))
		for target, vars := range s.Context {
			if tid, err := templateID(target); err == nil {
				overrides[tid] = FixUpVariables(vars)
			}
		}
	}
	return TemplateVars{Vars: Defaults(id, now).Merge(FixUpVariables(s.Vars)), Context: overrides}
}

func (e *Engine) templateVars(id string, sets []VarSet) []TemplateVars {
	now := e.now()
	out := make([]TemplateVars, len(sets))
	for i, s := range sets {
		out[i] = s.Bind(id, now)
	}
	return out
}

// GenerateAll renders every template below the source root once per variable
// set and writes the results below the destination root.
func (e *Engine) GenerateAll(ctx context.Context, sets []VarSet) (*Report, error) {
	ids, err := e.TemplateIDs()
	if err != nil {
		return nil, err
	}

	results := make([][]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.config.Workers))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res, err := e.renderAll(gctx, id, e.templateVars(id, sets))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Templates: len(ids)}
	for _, batch := range results {
		for _, res := range batch {
			switch {
			case res.Outcome == OutcomeSkipped:
				report.Skipped++
			case res.Unchanged:
				report.Unchanged++
				report.Outputs = append(report.Outputs, res.Path)
			default:
				report.Rendered++
				report.Outputs = append(report.Outputs, res.Path)
			}
		}
	}

	e.logger.InfoContext(ctx, "Generation finished",
		slog.Int("templates", report.Templates),
		slog.Int("rendered", report.Rendered),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

// GenerateAll is a convenience wrapper building an Engine for one run with
// plain variable maps.
func GenerateAll(ctx context.Context, sourceRoot, destRoot string, varMaps []map[string]any, opts ...Option) (*Report, error) {
	sets := make([]VarSet, len(varMaps))
	for i, m := range varMaps {
		sets[i] = VarSet{Vars: m}
	}
	return NewEngine(sourceRoot, destRoot, opts...).GenerateAll(ctx, sets)
}
