package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebaseqa/cqa/internal/api"
	"github.com/codebaseqa/cqa/internal/github"
	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/storage"
	"github.com/codebaseqa/cqa/internal/view"
)

func samplePayload() *graph.Payload {
	return &graph.Payload{
		Nodes: []graph.NodeData{
			{ID: "src/pages/index.tsx"},
			{ID: "src/components/Nav.tsx"},
			{ID: "src/config/site.ts"},
		},
		Edges: []graph.EdgeData{
			{Source: "src/pages/index.tsx", Target: "src/components/Nav.tsx"},
			{Source: "src/components/Nav.tsx", Target: "src/config/site.ts"},
		},
	}
}

func loadedView(t *testing.T, p *graph.Payload) *view.View {
	t.Helper()
	engine := layout.NewEngine(layout.NewCache(0), layout.WithPrimary(layout.NewLayered()))
	ctrl := view.New(view.FetcherFunc(func(context.Context) (*graph.Payload, error) { return p, nil }), engine, view.WithTitle("r1"))
	if err := ctrl.Load(context.Background(), false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ctrl.View()
}

func TestParseTypes(t *testing.T) {
	got, err := parseTypes([]string{"Config", " schema "})
	if err != nil {
		t.Fatalf("parseTypes() error = %v", err)
	}
	if len(got) != 2 || got[0] != graph.TypeConfig || got[1] != graph.TypeSchema {
		t.Errorf("parseTypes() = %v", got)
	}

	if _, err := parseTypes([]string{"widget"}); err == nil {
		t.Error("parseTypes(widget) should fail")
	}
}

func TestDefaultOutput(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatPNG, "dependency-graph.png"},
		{FormatSVG, "dependency-graph.svg"},
		{FormatHTML, "dependency-graph.html"},
	}
	for _, tt := range tests {
		if got := defaultOutput(tt.format); got != tt.want {
			t.Errorf("defaultOutput(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
	if validFormat("pdf") || !validFormat(FormatJSON) {
		t.Error("validFormat() disagrees with graphFormats")
	}
}

func TestWriteGraph(t *testing.T) {
	v := loadedView(t, samplePayload())

	tests := []struct {
		format string
		want   string
	}{
		{FormatHTML, "cytoscape"},
		{FormatSVG, "<svg"},
		{FormatPNG, "\x89PNG"},
		{FormatJSON, `"nodes"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeGraph(&buf, v, tt.format, "r1"); err != nil {
				t.Fatalf("writeGraph() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output lacks %q", tt.want)
			}
		})
	}
}

func TestWriteGraph_JSONRespectsFilters(t *testing.T) {
	engine := layout.NewEngine(layout.NewCache(0), layout.WithPrimary(layout.NewLayered()))
	p := samplePayload()
	ctrl := view.New(view.FetcherFunc(func(context.Context) (*graph.Payload, error) { return p, nil }), engine)
	if err := ctrl.Load(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	ctrl.HideTypes([]graph.FileType{graph.TypeConfig})

	var buf bytes.Buffer
	if err := writeGraph(&buf, ctrl.View(), FormatJSON, "r1"); err != nil {
		t.Fatal(err)
	}
	var out view.View
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	visible := 0
	for _, n := range out.Nodes {
		if n.Visible {
			visible++
		}
		if n.Type == graph.TypeConfig && n.Visible {
			t.Errorf("config node %s is visible", n.ID)
		}
	}
	if visible != 2 {
		t.Errorf("visible = %d, want 2", visible)
	}
}

func TestSnapshotFetcher(t *testing.T) {
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	f := snapshotFetcher(db, "r1", "")
	if _, err := f.Fetch(ctx); !errors.Is(err, errNoSnapshot) {
		t.Fatalf("Fetch() on empty store error = %v, want errNoSnapshot", err)
	}
	if code := exitCodeFor(fmt.Errorf("loading: %w", errNoSnapshot)); code != ExitNotFound {
		t.Errorf("exit code = %d, want %d", code, ExitNotFound)
	}

	if err := db.SaveSnapshot(ctx, "r1", "", samplePayload()); err != nil {
		t.Fatal(err)
	}
	p, err := f.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(p.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(p.Nodes))
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"api not found", &api.APIError{Status: 404, Message: "Repository not found"}, ExitNotFound},
		{"api rate limited", &api.APIError{Status: 429, Code: "DEMO_RATE_LIMITED"}, ExitRateLimited},
		{"api network", fmt.Errorf("%w: refused", api.ErrNetwork), ExitNetwork},
		{"invalid response", fmt.Errorf("decoding graph: %w", api.ErrInvalidResponse), ExitInvalidData},
		{"github missing", github.ErrRepoNotFound, ExitNotFound},
		{"github limited", github.ErrRateLimited, ExitRateLimited},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFirstLines(t *testing.T) {
	if got := firstLines("a\nb\nc\n", 2); got != "a\nb\n..." {
		t.Errorf("firstLines() = %q", got)
	}
	if got := firstLines("a\nb", 5); got != "a\nb" {
		t.Errorf("firstLines() = %q", got)
	}
	if got := truncateString("abcdefgh", 6); got != "abc..." {
		t.Errorf("truncateString() = %q", got)
	}
}
