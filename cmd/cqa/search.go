package main

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
)

func init() {
	searchCmd.Flags().IntP("limit", "n", api.DefaultSearchLimit, "Maximum number of results")
	searchCmd.Flags().StringSlice("file", nil, "Only search files matching these paths")
	searchCmd.Flags().StringSlice("language", nil, "Only search these languages")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <repo-id> <query...>",
	Short: "Semantic code search in a repository",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	limit, _ := cmd.Flags().GetInt("limit")
	files, _ := cmd.Flags().GetStringSlice("file")
	languages, _ := cmd.Flags().GetStringSlice("language")
	if limit <= 0 {
		exitWithError(ExitError, "--limit must be positive")
	}

	client := newClient(mustLoadConfig())
	resp, err := client.Search(ctx, api.SearchRequest{
		Query:          strings.Join(args[1:], " "),
		RepoID:         args[0],
		Limit:          limit,
		FileFilter:     files,
		LanguageFilter: languages,
	})
	if err != nil {
		exitWithAPIError(err, "searching")
	}

	if !humanOutput {
		return outputJSON(resp)
	}
	if len(resp.Results) == 0 {
		outputHuman("No results.\n")
		return nil
	}
	for i, r := range resp.Results {
		outputHuman("%d. [%.2f] %s:%d-%d\n", i+1, r.Score, color.CyanString(r.FilePath), r.StartLine, r.EndLine)
		for _, line := range strings.Split(firstLines(r.Content, SnippetMaxLines), "\n") {
			outputHuman("   %s\n", line)
		}
		outputHuman("\n")
	}
	outputHuman("%d results in %.0fms\n", resp.Total, resp.QueryTimeMS)
	return nil
}
