package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/github"
)

func init() {
	rootCmd.AddCommand(reposCmd)

	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposGetCmd)

	reposAddCmd.Flags().StringP("branch", "b", "", "Branch to index (default: the repository's default branch)")
	reposAddCmd.Flags().Bool("no-github", false, "Skip the GitHub metadata lookup")
	reposAddCmd.Flags().Bool("no-wait", false, "Return as soon as indexing has started")
	reposAddCmd.Flags().Duration("poll-interval", api.DefaultPollInterval, "How often to check indexing progress")
	reposCmd.AddCommand(reposAddCmd)

	reposCmd.AddCommand(reposDeleteCmd)
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage indexed repositories",
	Long:  `Commands for listing, adding and deleting repositories on the backend.`,
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories",
	Args:  cobra.NoArgs,
	RunE:  runReposList,
}

func runReposList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := newClient(mustLoadConfig())
	list, err := client.ListRepos(ctx)
	if err != nil {
		exitWithAPIError(err, "listing repositories")
	}

	if !humanOutput {
		return outputJSON(list)
	}
	if len(list.Repositories) == 0 {
		outputHuman("No repositories. Add one with 'cqa repos add <github-url>'.\n")
		return nil
	}
	for _, r := range list.Repositories {
		outputHuman("%s  %s  [%s]  %d files\n", color.CyanString(r.ID), r.FullName(), statusColor(r.Status), r.TotalFiles)
		if r.Description != "" {
			outputHuman("    %s\n", truncateString(r.Description, DescriptionMaxLen))
		}
	}
	outputHuman("\n%d repositories\n", list.Total)
	return nil
}

var reposGetCmd = &cobra.Command{
	Use:   "get <repo-id>",
	Short: "Show one repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposGet,
}

func runReposGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := newClient(mustLoadConfig())
	r, err := client.GetRepo(ctx, args[0])
	if err != nil {
		exitWithAPIError(err, "getting repository %s", args[0])
	}

	if !humanOutput {
		return outputJSON(r)
	}
	outputHuman("%s\n", color.New(color.Bold).Sprint(r.FullName()))
	outputHuman("  ID:        %s\n", r.ID)
	outputHuman("  URL:       %s\n", r.GitHubURL)
	outputHuman("  Status:    %s\n", statusColor(r.Status))
	if r.PrimaryLanguage != "" {
		outputHuman("  Language:  %s\n", r.PrimaryLanguage)
	}
	outputHuman("  Files:     %d (%d chunks)\n", r.TotalFiles, r.TotalChunks)
	if r.LastIndexedAt != "" {
		outputHuman("  Indexed:   %s\n", r.LastIndexedAt)
	}
	if r.Description != "" {
		outputHuman("\n  %s\n", r.Description)
	}
	return nil
}

var reposAddCmd = &cobra.Command{
	Use:   "add <github-url-or-owner/repo>",
	Short: "Submit a GitHub repository for indexing",
	Long: `Submit a GitHub repository to the backend for indexing.

The repository is looked up on GitHub first (set GITHUB_TOKEN for private
repositories or higher rate limits) so that missing repositories fail fast and
the default branch can be used when --branch is not given.

The command then waits until indexing completes or fails and reports the
number of indexed files and chunks. Pass --no-wait to return immediately.

Examples:
  cqa repos add https://github.com/vercel/next.js
  cqa repos add acme/shop --branch develop --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runReposAdd,
}

func runReposAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	branch, _ := cmd.Flags().GetString("branch")
	skipGitHub, _ := cmd.Flags().GetBool("no-github")
	noWait, _ := cmd.Flags().GetBool("no-wait")
	interval, _ := cmd.Flags().GetDuration("poll-interval")

	normalizedURL, err := github.NormalizeGitHubURL(args[0])
	if err != nil {
		exitWithError(ExitInvalidData, "invalid GitHub URL: %v", err)
	}

	if !skipGitHub {
		meta, err := github.NewClient().FetchRepoMetadata(ctx, normalizedURL)
		switch {
		case err == nil:
			if branch == "" {
				branch = meta.DefaultBranch
			}
			if meta.Archived {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is archived\n", meta.FullName)
			}
		case errors.Is(err, github.ErrRepoNotFound):
			exitWithError(ExitNotFound, "GitHub repository not found: %s", args[0])
		case errors.Is(err, github.ErrRateLimited):
			exitWithError(ExitRateLimited, "GitHub API rate limit exceeded; try again later or set GITHUB_TOKEN")
		case errors.Is(err, github.ErrUnauthorized):
			exitWithError(ExitError, "GitHub API authentication failed; check GITHUB_TOKEN")
		default:
			exitWithError(exitCodeFor(err), "GitHub API error: %v", err)
		}
	}

	client := newClient(mustLoadConfig())
	r, err := client.CreateRepo(ctx, normalizedURL, branch)
	if err != nil {
		if api.IsConflict(err) {
			exitWithError(ExitError, "repository already added: %s", normalizedURL)
		}
		exitWithAPIError(err, "adding repository")
	}

	if humanOutput {
		outputHuman("Added %s (id %s), status %s\n", r.FullName(), color.CyanString(r.ID), statusColor(r.Status))
	}
	if noWait || r.Indexed() {
		if !humanOutput {
			return outputJSON(r)
		}
		if !r.Indexed() {
			outputHuman("Indexing continues in the background. Check with 'cqa repos get %s'.\n", r.ID)
		}
		return nil
	}

	var progress io.Writer = io.Discard
	if humanOutput {
		progress = cmd.ErrOrStderr()
	}
	final, err := waitForIndex(ctx, client, r.ID, interval, progress)
	if err != nil {
		if errors.Is(err, api.ErrIndexingFailed) {
			exitWithError(ExitError, "%v", err)
		}
		exitWithAPIError(err, "waiting for %s", r.ID)
	}

	if !humanOutput {
		return outputJSON(final)
	}
	outputHuman("%s indexed\n", color.GreenString(final.FullName()))
	outputHuman("  Files:  %d\n", final.TotalFiles)
	outputHuman("  Chunks: %d\n", final.TotalChunks)
	return nil
}

// waitForIndex polls until indexing ends, writing each status change to w.
func waitForIndex(ctx context.Context, client *api.Client, repoID string, interval time.Duration, w io.Writer) (*api.Repo, error) {
	last := ""
	return client.WaitForIndexing(ctx, repoID, interval, func(r *api.Repo) {
		if r.Status != last {
			fmt.Fprintf(w, "  status: %s\n", r.Status)
			last = r.Status
		}
	})
}

var reposDeleteCmd = &cobra.Command{
	Use:   "delete <repo-id>",
	Short: "Delete a repository and its index",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposDelete,
}

func runReposDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := mustLoadConfig()
	if err := newClient(cfg).DeleteRepo(ctx, args[0]); err != nil {
		exitWithAPIError(err, "deleting repository %s", args[0])
	}

	// Local snapshots of a deleted repository are useless.
	if db := openSnapshots(cfg); db != nil {
		if _, err := db.DeleteSnapshots(ctx, args[0]); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: removing local snapshots: %v\n", err)
		}
		db.Close()
	}

	if !humanOutput {
		return outputJSON(StatusResponse{Status: "deleted", ID: args[0]})
	}
	outputHuman("Deleted %s\n", args[0])
	return nil
}
