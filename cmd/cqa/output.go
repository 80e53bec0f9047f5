package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/codebaseqa/cqa/internal/api"
)

// Constants for output formatting.
const (
	DescriptionMaxLen = 60 // Used in repos list output
	SnippetMaxLines   = 6  // Lines of code shown per search hit
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithAPIError reports a client error with its backend code and retry hint.
func exitWithAPIError(err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...) + ": " + err.Error()
	resp := ErrorResponse{Error: msg}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		resp.Code = apiErr.Code
		resp.RetryAfterSeconds = apiErr.RetryAfterSeconds
	}

	if humanOutput {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), msg)
		if wait, ok := api.RetryAfter(err); ok {
			fmt.Fprintf(os.Stderr, "  retry in %s\n", wait)
		}
	} else {
		outputJSON(resp)
	}
	os.Exit(exitCodeFor(err))
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Path   string `json:"path,omitempty"`
}

// statusColor colours a repository indexing status.
func statusColor(status string) string {
	switch status {
	case api.StatusCompleted:
		return color.GreenString(status)
	case api.StatusFailed:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// firstLines returns at most n lines of s.
func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}
