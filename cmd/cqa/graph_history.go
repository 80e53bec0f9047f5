package main

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/storage"
)

func init() {
	graphHistoryCmd.Flags().Int("prune", 0, "Keep only the newest N snapshots (0 keeps all)")
	graphCmd.AddCommand(graphHistoryCmd)

	graphExportCmd.Flags().StringP("output", "o", "-", "Output JSONL file, - for stdout")
	graphExportCmd.Flags().Bool("latest", false, "Export only the newest snapshot")
	graphCmd.AddCommand(graphExportCmd)

	graphCmd.AddCommand(graphImportCmd)
}

var graphHistoryCmd = &cobra.Command{
	Use:   "history <repo-id>",
	Short: "List stored graph snapshots for a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphHistory,
}

// HistoryResult is the response for the graph history command.
type HistoryResult struct {
	RepoID    string             `json:"repo_id"`
	Snapshots []storage.Snapshot `json:"snapshots"`
	Pruned    int64              `json:"pruned,omitempty"`
}

func runGraphHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	keep, _ := cmd.Flags().GetInt("prune")
	if keep < 0 {
		exitWithError(ExitError, "--prune must not be negative")
	}

	db := mustOpenSnapshots(mustLoadConfig())
	defer db.Close()

	res := HistoryResult{RepoID: args[0]}
	if keep > 0 {
		n, err := db.PruneSnapshots(ctx, args[0], keep)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		res.Pruned = n
	}

	snaps, err := db.ListSnapshots(ctx, args[0])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	res.Snapshots = snaps
	if res.Snapshots == nil {
		res.Snapshots = []storage.Snapshot{}
	}

	if !humanOutput {
		return outputJSON(res)
	}
	if res.Pruned > 0 {
		outputHuman("Pruned %d snapshots\n", res.Pruned)
	}
	if len(snaps) == 0 {
		outputHuman("No snapshots for %s\n", args[0])
		return nil
	}
	for _, s := range snaps {
		query := s.QueryKey
		if query == "" {
			query = "(default query)"
		}
		truncated := ""
		if s.Truncated {
			truncated = "  truncated"
		}
		outputHuman("#%d  %s  %d nodes  %d edges  %s%s\n",
			s.ID, s.FetchedAt.Local().Format("2006-01-02 15:04:05"), s.NodeCount, s.EdgeCount, query, truncated)
	}
	return nil
}

var graphExportCmd = &cobra.Command{
	Use:   "export <repo-id>",
	Short: "Export stored snapshots as JSONL",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphExport,
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	output, _ := cmd.Flags().GetString("output")
	latestOnly, _ := cmd.Flags().GetBool("latest")

	db := mustOpenSnapshots(mustLoadConfig())
	defer db.Close()

	metas, err := db.ListSnapshots(ctx, args[0])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if latestOnly && len(metas) > 1 {
		metas = metas[:1]
	}

	// Oldest first, so an import replays them in fetch order.
	snaps := make([]storage.Snapshot, 0, len(metas))
	for i := len(metas) - 1; i >= 0; i-- {
		s, err := db.GetSnapshot(ctx, metas[i].ID)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if s != nil {
			snaps = append(snaps, *s)
		}
	}

	if output == "-" {
		w := bufio.NewWriter(os.Stdout)
		if err := storage.WriteSnapshotsJSONL(w, snaps); err != nil {
			exitWithError(ExitError, "%v", err)
		}
		return w.Flush()
	}

	f, err := os.Create(output)
	if err != nil {
		exitWithError(ExitError, "creating %s: %v", output, err)
	}
	w := bufio.NewWriter(f)
	if err := storage.WriteSnapshotsJSONL(w, snaps); err != nil {
		f.Close()
		exitWithError(ExitError, "%v", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		exitWithError(ExitError, "writing %s: %v", output, err)
	}
	if err := f.Close(); err != nil {
		exitWithError(ExitError, "writing %s: %v", output, err)
	}

	if !humanOutput {
		return outputJSON(ImportExportResult{Status: "exported", Path: output, Count: len(snaps)})
	}
	outputHuman("Exported %d snapshots to %s\n", len(snaps), output)
	return nil
}

// ImportExportResult is the response for snapshot export and import.
type ImportExportResult struct {
	Status string `json:"status"`
	Path   string `json:"path"`
	Count  int    `json:"count"`
}

var graphImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import snapshots exported with 'cqa graph export'",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphImport,
}

func runGraphImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if _, err := os.Stat(args[0]); err != nil {
		exitWithError(ExitInvalidData, "reading %s: %v", args[0], err)
	}
	snaps, err := storage.ReadSnapshotsJSONL(args[0])
	if err != nil {
		exitWithError(ExitInvalidData, "%v", err)
	}

	db := mustOpenSnapshots(mustLoadConfig())
	defer db.Close()

	for _, s := range snaps {
		if _, err := db.InsertSnapshot(ctx, s); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	if !humanOutput {
		return outputJSON(ImportExportResult{Status: "imported", Path: args[0], Count: len(snaps)})
	}
	outputHuman("Imported %d snapshots from %s\n", len(snaps), args[0])
	return nil
}
