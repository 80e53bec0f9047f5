// Package main provides the cqa CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/config"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cqa",
	Short: "Codebase Q&A client and dependency graph viewer",
	Long: `cqa talks to a Codebase Q&A backend.

Core features:
  - Submit GitHub repositories for indexing and manage them
  - Ask questions about an indexed repository (answers stream as they arrive)
  - Semantic code search
  - Render the repository dependency graph to HTML, SVG, PNG or JSON
  - Serve an interactive local graph viewer
  - List learning curricula and export lessons as VS Code CodeTours

Settings are read from ~/.config/cqa/config.yml, CQA_API_URL and CQA_API_KEY.
All commands output JSON by default; pass --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.Version = Version
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// mustLoadConfig loads the global configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// newClient builds an API client from the configuration.
func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(
		api.WithBaseURL(cfg.APIURL),
		api.WithAPIKey(cfg.APIKey),
		api.WithRateLimit(cfg.RequestsPerSecond),
	)
}

// newEngine builds the layout engine from the configuration.
func newEngine(cfg *config.Config) *layout.Engine {
	return layout.NewEngine(
		layout.NewCache(cfg.LayoutCacheSize),
		layout.WithTimeout(cfg.LayoutTimeout),
		layout.WithLogger(slog.Default()),
	)
}

// mustOpenSnapshots opens the snapshot database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenSnapshots(cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.SnapshotDB)
	if err != nil {
		exitWithError(ExitError, "opening snapshot database: %v", err)
	}
	return db
}

// openSnapshots opens the snapshot database for best-effort writes. A failure is
// logged and nil is returned.
func openSnapshots(cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.SnapshotDB)
	if err != nil {
		slog.Warn("snapshot database unavailable", "path", cfg.SnapshotDB, "error", err)
		return nil
	}
	return db
}
