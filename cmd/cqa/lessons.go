package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
)

func init() {
	lessonsCmd.Flags().String("persona", api.DefaultPersona, "Curriculum track (e.g. new_hire, auditor)")
	rootCmd.AddCommand(lessonsCmd)

	exportTourCmd.Flags().StringP("output", "o", "", "Output file, - for stdout (default: <lesson title>.tour)")
	rootCmd.AddCommand(exportTourCmd)
}

var lessonsCmd = &cobra.Command{
	Use:   "lessons <repo-id>",
	Short: "List the learning curriculum of a repository",
	Long: `List the modules and lessons of a repository's curriculum.

The backend builds the curriculum on first request, so the first call for a
persona can take a while.

Example:
  cqa lessons 3f2a1c --human`,
	Args: cobra.ExactArgs(1),
	RunE: runLessons,
}

func runLessons(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	repoID := args[0]
	persona, _ := cmd.Flags().GetString("persona")
	client := newClient(mustLoadConfig())

	// Fail fast on unknown repositories before the slow curriculum call.
	if _, err := client.GetRepo(ctx, repoID); err != nil {
		exitWithAPIError(err, "getting repository %s", repoID)
	}
	if humanOutput {
		fmt.Fprintln(cmd.ErrOrStderr(), color.HiBlackString("Fetching curriculum (this may take a moment)..."))
	}
	syllabus, err := client.Curriculum(ctx, repoID, persona)
	if err != nil {
		exitWithAPIError(err, "fetching curriculum for %s", repoID)
	}

	if !humanOutput {
		return outputJSON(syllabus)
	}
	outputHuman("\n%s %s\n\n", color.New(color.Bold).Sprint("Curriculum:"), syllabus.Title)
	for i, m := range syllabus.Modules {
		outputHuman("%s\n", color.New(color.Bold, color.FgBlue).Sprintf("%d. %s", i+1, m.Title))
		for _, l := range m.Lessons {
			outputHuman("   - %s %s\n", l.Title, color.HiBlackString("(ID: %s)", l.ID))
		}
		outputHuman("\n")
	}
	return nil
}

var exportTourCmd = &cobra.Command{
	Use:   "export-tour <repo-id> <lesson-id>",
	Short: "Export a lesson as a VS Code CodeTour file",
	Long: `Export a lesson as a VS Code CodeTour (.tour) file.

Lesson ids are listed by 'cqa lessons'. Open the file with the CodeTour
extension from the repository's checkout root.

Example:
  cqa export-tour 3f2a1c routing -o .tours/routing.tour`,
	Args: cobra.ExactArgs(2),
	RunE: runExportTour,
}

func runExportTour(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	repoID, lessonID := args[0], args[1]
	output, _ := cmd.Flags().GetString("output")
	client := newClient(mustLoadConfig())

	tour, err := client.ExportCodeTour(ctx, repoID, lessonID)
	if err != nil {
		exitWithAPIError(err, "exporting lesson %s", lessonID)
	}
	data, err := json.MarshalIndent(tour, "", "  ")
	if err != nil {
		exitWithError(ExitError, "encoding tour: %v", err)
	}
	data = append(data, '\n')

	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if output == "" {
		output = tourFilename(tour.Title, lessonID)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", output, err)
	}

	if !humanOutput {
		return outputJSON(ImportExportResult{Status: "exported", Path: output, Count: len(tour.Steps)})
	}
	outputHuman("%s %s (%d steps)\n", color.GreenString("Exported to:"), output, len(tour.Steps))
	return nil
}

// tourFilename derives <slug>.tour from a lesson title: lower case, spaces as
// underscores, path separators removed.
func tourFilename(title, fallback string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '\\', ':':
			return -1
		}
		return r
	}, slug)
	slug = strings.Trim(slug, "._")
	if slug == "" {
		slug = fallback
	}
	return slug + ".tour"
}
