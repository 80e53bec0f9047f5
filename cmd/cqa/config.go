package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codebaseqa/cqa/internal/config"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect cqa configuration",
	Long: `Inspect the effective configuration.

Settings come from ~/.config/cqa/config.yml (or $XDG_CONFIG_HOME/cqa/config.yml),
overridden by CQA_API_URL and CQA_API_KEY. A .env file in the working
directory is loaded first.

Example config.yml:
  api_url: https://cqa.example.com
  api_key: sk-...
  default_layout: vertical
  layout_timeout: 2s
  layout_cache_size: 32`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (API key redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig().Redacted()
		if !humanOutput {
			return outputJSON(cfg)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			exitWithError(ExitError, "encoding config: %v", err)
		}
		outputHuman("%s", out)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the global config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalConfigPath()
		if !humanOutput {
			return outputJSON(StatusResponse{Status: "ok", Path: path})
		}
		outputHuman("%s\n", path)
		return nil
	},
}
