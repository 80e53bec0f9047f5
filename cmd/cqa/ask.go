package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <repo-id> <question...>",
	Short: "Ask a question about a repository",
	Long: `Ask a question about an indexed repository.

With --human the answer is printed as it streams in, followed by the source
files it was grounded on. Otherwise the complete answer is printed as JSON.

Example:
  cqa ask 3f2a1c "How is authentication wired up?" --human`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	repoID := args[0]
	question := strings.Join(args[1:], " ")
	client := newClient(mustLoadConfig())

	var onContent func(string)
	if humanOutput {
		onContent = func(s string) { fmt.Fprint(os.Stdout, s) }
	}

	ans, err := client.Ask(ctx, repoID, question, onContent)
	if err != nil {
		if humanOutput {
			fmt.Println()
		}
		exitWithAPIError(err, "asking question")
	}

	if !humanOutput {
		return outputJSON(ans)
	}
	outputHuman("\n")
	if len(ans.Sources) > 0 {
		outputHuman("\n%s\n", color.New(color.Bold).Sprint("Sources:"))
		for _, s := range ans.Sources {
			outputHuman("  %s:%d-%d\n", color.CyanString(s.File), s.StartLine, s.EndLine)
		}
	}
	return nil
}
