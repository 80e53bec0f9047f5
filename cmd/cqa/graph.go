package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/render"
	"github.com/codebaseqa/cqa/internal/storage"
	"github.com/codebaseqa/cqa/internal/view"
)

// Output formats of the graph command.
const (
	FormatHTML = "html"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

var graphFormats = []string{FormatHTML, FormatSVG, FormatPNG, FormatJSON}

var errNoSnapshot = errors.New("no stored graph")

func init() {
	f := graphCmd.Flags()
	f.String("granularity", "", "Graph granularity: file, module or auto (default: backend decides)")
	f.String("scope", "", "Restrict the graph to a path prefix")
	f.String("focus", "", "Center the graph on this node")
	f.Int("hops", 0, "Neighbourhood size around --focus")
	f.StringP("layout", "l", "", "Layout: horizontal, vertical or radial (default from config)")
	f.StringP("format", "f", FormatHTML, "Output format: "+strings.Join(graphFormats, ", "))
	f.StringP("output", "o", "", "Output file, - for stdout (default: dependency-graph.<format>)")
	f.StringP("search", "s", "", "Only show nodes whose name or path contains this text")
	f.StringSlice("hide-type", nil, "Hide nodes of these types (component, page, store, util, api, config, schema, default, module)")
	f.String("select", "", "Select a node and highlight its connections")
	f.Bool("regenerate", false, "Ignore cached layouts and lay the graph out again")
	f.Bool("offline", false, "Use the latest stored snapshot instead of calling the backend")
	f.Bool("no-snapshot", false, "Do not store the fetched graph locally")
	rootCmd.AddCommand(graphCmd)
}

var graphCmd = &cobra.Command{
	Use:   "graph <repo-id>",
	Short: "Render a repository's dependency graph",
	Long: `Fetch a repository's dependency graph, lay it out and write it as a
self-contained interactive HTML page, an SVG or PNG image, or JSON.

Every fetched graph is stored in the local snapshot database so it can be
rendered again with --offline.

Examples:
  cqa graph 3f2a1c
  cqa graph 3f2a1c --layout vertical --hide-type config --hide-type schema
  cqa graph 3f2a1c --format png --search auth
  cqa graph 3f2a1c --granularity module --format json -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

// GraphResult is the response of the graph command when writing a file.
type GraphResult struct {
	Status    string      `json:"status"`
	Path      string      `json:"path"`
	Format    string      `json:"format"`
	Mode      layout.Mode `json:"mode"`
	Strategy  string      `json:"strategy,omitempty"`
	FromCache bool        `json:"from_cache"`
	Stats     view.Stats  `json:"stats"`
	Visible   int         `json:"visible_nodes"`
	Caveats   []string    `json:"caveats,omitempty"`
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	repoID := args[0]
	flags := cmd.Flags()
	granularity, _ := flags.GetString("granularity")
	scope, _ := flags.GetString("scope")
	focus, _ := flags.GetString("focus")
	hops, _ := flags.GetInt("hops")
	layoutName, _ := flags.GetString("layout")
	format, _ := flags.GetString("format")
	output, _ := flags.GetString("output")
	search, _ := flags.GetString("search")
	hideTypes, _ := flags.GetStringSlice("hide-type")
	selectID, _ := flags.GetString("select")
	regenerate, _ := flags.GetBool("regenerate")
	offline, _ := flags.GetBool("offline")
	noSnapshot, _ := flags.GetBool("no-snapshot")

	cfg := mustLoadConfig()

	format = strings.ToLower(format)
	if !validFormat(format) {
		exitWithError(ExitError, "unknown format %q (want one of %s)", format, strings.Join(graphFormats, ", "))
	}
	mode := cfg.Mode()
	if layoutName != "" {
		m, err := layout.ParseMode(layoutName)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		mode = m
	}
	hidden, err := parseTypes(hideTypes)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	query := api.GraphQuery{Granularity: granularity, Scope: scope, FocusNode: focus, Hops: hops}
	opts := []view.Option{
		view.WithLogger(slog.Default()),
		view.WithTitle(repoID),
		view.WithMode(mode),
	}

	var fetcher view.Fetcher
	if offline {
		db := mustOpenSnapshots(cfg)
		defer db.Close()
		fetcher = snapshotFetcher(db, repoID, api.QueryKey(query))
	} else {
		fetcher = api.NewFetcher(newClient(cfg), repoID, query)
		if !noSnapshot {
			if db := openSnapshots(cfg); db != nil {
				defer db.Close()
				opts = append(opts, view.WithSnapshots(db, repoID, api.QueryKey(query)))
			}
		}
	}

	ctrl := view.New(fetcher, newEngine(cfg), opts...)
	if err := ctrl.Load(ctx, regenerate); err != nil {
		exitWithAPIError(err, "loading graph for %s", repoID)
	}

	if search != "" {
		ctrl.Search(search)
	}
	if len(hidden) > 0 {
		ctrl.HideTypes(hidden)
	}
	if selectID != "" && !ctrl.Select(selectID) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: node %q is not in the visible graph\n", selectID)
	}

	v := ctrl.View()
	if output == "" {
		if format == FormatJSON {
			output = "-"
		} else {
			output = defaultOutput(format)
		}
	}

	var buf bytes.Buffer
	if err := writeGraph(&buf, v, format, repoID); err != nil {
		exitWithError(ExitError, "rendering graph: %v", err)
	}
	if output == "-" {
		_, err := io.Copy(os.Stdout, &buf)
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", output, err)
	}

	res := GraphResult{
		Status:    "written",
		Path:      output,
		Format:    format,
		Mode:      v.Mode,
		Strategy:  v.Strategy,
		FromCache: v.FromCache,
		Stats:     v.Stats,
		Visible:   len(v.VisibleNodes()),
		Caveats:   v.Caveats,
	}
	if !humanOutput {
		return outputJSON(res)
	}
	outputHuman("Wrote %s (%d of %d nodes visible, %d edges, %s layout", output, res.Visible, v.Stats.Nodes, v.Stats.Edges, v.Mode)
	if v.FromCache {
		outputHuman(", cached")
	}
	outputHuman(")\n")
	for _, c := range v.Caveats {
		outputHuman("  note: %s\n", c)
	}
	return nil
}

func writeGraph(w io.Writer, v *view.View, format, repoID string) error {
	switch format {
	case FormatJSON:
		return jsonTo(w, v)
	case FormatSVG:
		return render.SVG(w, v.Scene(), 1)
	case FormatPNG:
		return render.PNG(w, v.Scene(), render.PNGOptions{Scale: 2})
	default:
		opts := render.DefaultOptions()
		opts.GenerateHint = fmt.Sprintf("cqa graph %s --regenerate", repoID)
		page, err := render.HTML(v.Scene(), opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	}
}

// snapshotFetcher serves the newest stored payload for repoID and queryKey.
func snapshotFetcher(db *storage.DB, repoID, queryKey string) view.Fetcher {
	return view.FetcherFunc(func(ctx context.Context) (*graph.Payload, error) {
		snap, err := db.LatestSnapshot(ctx, repoID, queryKey)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, fmt.Errorf("%w for %s; run without --offline first", errNoSnapshot, repoID)
		}
		return snap.Payload, nil
	})
}

func parseTypes(names []string) ([]graph.FileType, error) {
	var out []graph.FileType
	for _, name := range names {
		t, ok := graph.ParseFileType(name)
		if !ok {
			return nil, fmt.Errorf("unknown node type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func validFormat(f string) bool {
	for _, known := range graphFormats {
		if f == known {
			return true
		}
	}
	return false
}

func defaultOutput(format string) string {
	if format == FormatPNG {
		return render.DefaultExportName
	}
	return strings.TrimSuffix(render.DefaultExportName, ".png") + "." + format
}

func jsonTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
