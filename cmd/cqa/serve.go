package main

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/server"
)

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, 127.0.0.1:7420)")
	serveCmd.Flags().String("granularity", "", "Graph granularity requested for every repository")
	serveCmd.Flags().StringP("layout", "l", "", "Initial layout: horizontal, vertical or radial")
	serveCmd.Flags().Bool("no-snapshot", false, "Do not store fetched graphs locally")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive graph viewer",
	Long: `Serve a local web UI listing the backend's repositories, with an
interactive dependency graph page per repository.

The viewer keeps per-repository state (layout mode, filters, selection) for as
long as it runs, and all repositories share one layout cache.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	addr, _ := cmd.Flags().GetString("addr")
	granularity, _ := cmd.Flags().GetString("granularity")
	layoutName, _ := cmd.Flags().GetString("layout")
	noSnapshot, _ := cmd.Flags().GetBool("no-snapshot")

	cfg := mustLoadConfig()
	if addr == "" {
		addr = cfg.ServeAddr
	}
	mode := cfg.Mode()
	if layoutName != "" {
		m, err := layout.ParseMode(layoutName)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		mode = m
	}

	// The viewer always logs requests.
	logger := slog.Default()
	if !verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithQuery(api.GraphQuery{Granularity: granularity}),
		server.WithMode(mode),
	}
	if !noSnapshot {
		if db := openSnapshots(cfg); db != nil {
			defer db.Close()
			opts = append(opts, server.WithSnapshots(db))
		}
	}

	srv := server.New(newClient(cfg), newEngine(cfg), opts...)
	err := srv.ListenAndServe(ctx, addr, func(a net.Addr) {
		fmt.Fprintf(cmd.OutOrStdout(), "Viewer running at http://%s/ (Ctrl-C to stop)\n", a)
	})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return nil
}
