package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CTAG07/gentpl/pkg/codegen"
	"github.com/CTAG07/gentpl/pkg/ledger"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app bundles what every command needs once the configuration is loaded.
type app struct {
	config *Config
	logger *slog.Logger
}

func newApp(configPath string) (*app, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(config.Server.LogLevel)}))
	return &app{config: config, logger: logger}, nil
}

func (a *app) newEngine(opts ...codegen.Option) *codegen.Engine {
	gen := a.config.Generator
	opts = append([]codegen.Option{
		codegen.WithLogger(a.logger),
		codegen.WithConfig(gen.Engine),
	}, opts...)
	return codegen.NewEngine(gen.SourceDir, gen.DestDir, opts...)
}

// openLedger opens the ledger database and prepares a Ledger on it. The
// returned close function releases both.
func (a *app) openLedger() (*ledger.Ledger, func(), error) {
	db, err := openDB(a.config.Ledger.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
	if err = setupLedger(db); err != nil {
		closeDB()
		return nil, nil, err
	}
	l, err := ledger.NewLedger(db)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to prepare ledger: %w", err)
	}
	l.SetLogger(a.logger)
	return l, func() {
		l.Close()
		closeDB()
	}, nil
}

func setupLedger(db *sql.DB) error {
	// A single connection keeps concurrent workers from racing for the write lock.
	db.SetMaxOpenConns(1)
	if err := ledger.SetupSchema(db); err != nil {
		return fmt.Errorf("failed to set up ledger schema: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var configPath string
	var a *app

	root := &cobra.Command{
		Use:           "gentpl",
		Short:         "Generate source files from annotated templates",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(configPath)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.json", "path to the JSON configuration file")

	appFn := func() *app { return a }
	root.AddCommand(
		newGenerateCmd(appFn),
		newRenderCmd(appFn),
		newServeCmd(appFn),
		newStatsCmd(appFn),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
