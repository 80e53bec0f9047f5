package main

import (
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend health and platform mode",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// StatusResult is the response for the status command.
type StatusResult struct {
	APIURL   string              `json:"api_url"`
	Health   *api.Health         `json:"health"`
	Platform *api.PlatformConfig `json:"platform,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := newClient(mustLoadConfig())
	health, err := client.Health(ctx)
	if err != nil {
		exitWithAPIError(err, "checking backend health")
	}
	res := StatusResult{APIURL: client.BaseURL(), Health: health}

	// Older backends have no platform endpoint.
	if pc, err := client.PlatformConfig(ctx); err == nil {
		res.Platform = pc
	} else if !api.IsNotFound(err) {
		exitWithAPIError(err, "reading platform config")
	}

	if !humanOutput {
		return outputJSON(res)
	}
	state := color.GreenString(health.Status)
	if health.Status != "healthy" && health.Status != "ok" {
		state = color.YellowString(health.Status)
	}
	outputHuman("%s  %s", res.APIURL, state)
	if health.Version != "" {
		outputHuman("  v%s", health.Version)
	}
	outputHuman("\n")

	names := make([]string, 0, len(health.Checks))
	for name := range health.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		outputHuman("  %-12s %s\n", name, health.Checks[name])
	}

	if pc := res.Platform; pc != nil && pc.DemoMode {
		outputHuman("\n%s", color.YellowString("Demo mode"))
		if pc.DemoRepoFullName != "" {
			outputHuman(": %s (%s)", pc.DemoRepoFullName, pc.DemoRepoID)
		}
		outputHuman("\n")
		if pc.BusyMode {
			outputHuman("  busy: chat and indexing may be refused\n")
		}
	}
	return nil
}
