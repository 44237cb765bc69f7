package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/CTAG07/gentpl/pkg/codegen"
	"github.com/CTAG07/gentpl/pkg/ledger"
	"github.com/spf13/cobra"
)

func newGenerateCmd(appFn func() *app) *cobra.Command {
	var src, dest, varsFile string
	var prune bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render every template once per variable set into the destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			gen := a.config.Generator
			if cmd.Flags().Changed("src") {
				gen.SourceDir = src
			}
			if cmd.Flags().Changed("dest") {
				gen.DestDir = dest
			}
			if cmd.Flags().Changed("vars") {
				gen.VarsFile = varsFile
			}
			if cmd.Flags().Changed("prune") {
				gen.PruneStale = prune
			}
			return a.generate(cmd)
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "template source directory")
	cmd.Flags().StringVar(&dest, "dest", "", "output directory")
	cmd.Flags().StringVar(&varsFile, "vars", "", "YAML or JSON file with variable sets")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete outputs a previous run wrote that this run did not")
	return cmd
}

func (a *app) generate(cmd *cobra.Command) error {
	ctx := cmd.Context()
	gen := a.config.Generator

	sets, err := loadVarSets(gen.VarsFile)
	if err != nil {
		return err
	}

	if !a.config.Ledger.Enabled {
		report, err := a.newEngine().GenerateAll(ctx, sets)
		if err != nil {
			return err
		}
		printReport(cmd, report, nil)
		return nil
	}

	l, closeLedger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	run, err := l.BeginRun(ctx, gen.SourceDir, gen.DestDir)
	if err != nil {
		return err
	}
	report, err := a.newEngine(codegen.WithTracker(run)).GenerateAll(ctx, sets)
	if err != nil {
		// Unfinished runs are never used for pruning.
		return err
	}
	run.AddSkipped(report.Skipped)
	if err = run.Finish(ctx); err != nil {
		return err
	}

	var removed []string
	if gen.PruneStale {
		if removed, err = a.pruneStale(cmd, l, run); err != nil {
			return err
		}
	}
	printReport(cmd, report, removed)
	return nil
}

func (a *app) pruneStale(cmd *cobra.Command, l *ledger.Ledger, run *ledger.Run) ([]string, error) {
	stale, err := l.PruneStale(cmd.Context(), run)
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("Failed to delete stale output", "path", p, "error", err)
		}
	}
	return stale, nil
}

func printReport(cmd *cobra.Command, report *codegen.Report, removed []string) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%d templates: %d rendered, %d unchanged, %d skipped",
		report.Templates, report.Rendered, report.Unchanged, report.Skipped)
	if len(removed) > 0 {
		_, _ = fmt.Fprintf(out, ", %d stale removed", len(removed))
	}
	_, _ = fmt.Fprintln(out)
}

func newRenderCmd(appFn func() *app) *cobra.Command {
	var varsFile string
	var index int

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render one template to standard output without writing files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			if !cmd.Flags().Changed("vars") {
				varsFile = a.config.Generator.VarsFile
				if _, err := os.Stat(varsFile); err != nil {
					varsFile = ""
				}
			}
			var set codegen.VarSet
			if varsFile != "" {
				sets, err := loadVarSets(varsFile)
				if err != nil {
					return err
				}
				if index < 0 || index >= len(sets) {
					return fmt.Errorf("variable set %d out of range (file has %d)", index, len(sets))
				}
				set = sets[index]
			}

			id := args[0]
			vars := set.Bind(id, time.Now())

			res, err := a.newEngine().Render(cmd.Context(), id, vars)
			if err != nil {
				return err
			}
			if res.Outcome == codegen.OutcomeSkipped {
				a.logger.Info("Template skipped", "template", id, "reason", res.SkipReason)
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), res.Text())
			return err
		},
	}
	cmd.Flags().StringVar(&varsFile, "vars", "", "YAML or JSON file with variable sets")
	cmd.Flags().IntVar(&index, "set", 0, "index of the variable set to use")
	return cmd
}

func newStatsCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print generation ledger statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeLedger, err := appFn().openLedger()
			if err != nil {
				return err
			}
			defer closeLedger()

			stats, err := l.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
