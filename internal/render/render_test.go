package render

import (
	"bytes"
	"encoding/json"
	"image/png"
	"strings"
	"testing"

	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
)

func testScene(t *testing.T) *Scene {
	t.Helper()
	a := graph.Adapt(&graph.Payload{
		Nodes: []graph.NodeData{
			{ID: "src/components/Nav.tsx", Importance: graph.N(8), LOC: graph.N(120)},
			{ID: "src/lib/fetch.ts", LOC: graph.N(40)},
			{ID: "src/config/app.ts"},
		},
		Edges: []graph.EdgeData{
			{Source: "src/components/Nav.tsx", Target: "src/lib/fetch.ts", Weight: graph.N(5), Label: "fetchJSON"},
			{Source: "src/lib/fetch.ts", Target: "src/config/app.ts", Type: "configures"},
		},
	})
	res, err := layout.NewEngine(layout.NewCache(2), layout.WithPrimary(layout.NewLayered())).
		Compute(t.Context(), a.Nodes, a.Edges, layout.ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}

	s := &Scene{
		Title:    "acme/web",
		Mode:     res.Mode,
		LOD:      res.LOD,
		Strategy: res.Strategy,
		Stats:    Stats{Nodes: 3, Edges: 2, Ratio: 0.67, Band: "sparse"},
		Caveats:  []string{"graph truncated by the server"},
	}
	for _, n := range res.Nodes {
		s.Nodes = append(s.Nodes, SceneNode{LaidOutNode: n, Visible: true, Degree: a.Degree(n.ID)})
	}
	for _, e := range a.Edges {
		s.Edges = append(s.Edges, SceneEdge{Edge: e, Visible: true})
	}
	for _, ft := range a.Types() {
		st := NodeStyle(ft)
		s.Legend = append(s.Legend, LegendEntry{Type: ft, Label: st.Label, Color: cssRGBA(st.Color), Count: 1, Active: true})
	}
	return s
}

func TestSizeMultiplier(t *testing.T) {
	tests := []struct {
		importance int
		want       float64
	}{
		{1, 0.85}, {10, 1.30}, {5, 1.05}, {0, 0.85}, {-3, 0.85}, {42, 1.30},
	}
	for _, tt := range tests {
		got := SizeMultiplier(tt.importance)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("SizeMultiplier(%d) = %v, want %v", tt.importance, got, tt.want)
		}
	}
}

func TestStrokeWidth(t *testing.T) {
	tests := []struct {
		weight int
		want   float64
	}{
		{1, 1}, {5, 4}, {3, 2.5}, {0, 1}, {9, 4},
	}
	for _, tt := range tests {
		if got := StrokeWidth(tt.weight); got != tt.want {
			t.Errorf("StrokeWidth(%d) = %v, want %v", tt.weight, got, tt.want)
		}
	}
}

func TestShowEdgeLabel(t *testing.T) {
	light := graph.Edge{Weight: 1}
	heavy := graph.Edge{Weight: 4}
	ranked := graph.Edge{Weight: 1, Rank: 0.7, HasRank: true}

	tests := []struct {
		name        string
		edge        graph.Edge
		highlighted bool
		zoom        float64
		want        bool
	}{
		{"highlighted always", light, true, 0.1, true},
		{"light edge hidden", light, false, 2, false},
		{"heavy edge zoomed in", heavy, false, 0.9, true},
		{"heavy edge zoomed out", heavy, false, 0.89, false},
		{"high rank zoomed in", ranked, false, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShowEdgeLabel(tt.edge, tt.highlighted, tt.zoom); got != tt.want {
				t.Errorf("ShowEdgeLabel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStyles(t *testing.T) {
	for _, ft := range graph.AllTypes {
		if NodeStyle(ft).Label == "" {
			t.Errorf("no style for %s", ft)
		}
	}
	if NodeStyle("bogus") != NodeStyle(graph.TypeDefault) {
		t.Error("unknown type should use the default style")
	}
	if !EdgeStyle("uses").Dashed || !EdgeStyle("configures").Dashed {
		t.Error("uses and configures edges should be dashed")
	}
	if EdgeStyle("imports").Dashed {
		t.Error("imports edges should be solid")
	}
}

func TestHTML(t *testing.T) {
	s := testScene(t)
	s.Nodes[2].Visible = false
	s.Edges[1].Visible = false

	out, err := HTML(s, DefaultOptions())
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}

	for _, want := range []string{
		"<title>acme/web</title>",
		"cytoscape",
		`name: 'preset'`,
		"src/components/Nav.tsx",
		"dependency-graph.png",
		"#0f172a",
		"graph truncated by the server",
		"sparse",
		`"classes":"full hidden"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(out, `id="regenerate"`) {
		t.Error("static export should not offer Regenerate")
	}
}

func TestHTML_Served(t *testing.T) {
	opts := DefaultOptions()
	opts.APIBase = "/api/view/42/"
	out, err := HTML(testScene(t), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `id="regenerate"`) {
		t.Error("served page should offer Regenerate")
	}
	if !strings.Contains(out, `"/api/view/42"`) {
		t.Error("served page should embed the trimmed API base")
	}
}

func TestHTML_EscapesLabels(t *testing.T) {
	s := testScene(t)
	s.Title = `<script>alert(1)</script>`
	out, err := HTML(s, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<title><script>") {
		t.Error("title not escaped")
	}
}

func TestHTML_Empty(t *testing.T) {
	out, err := HTML(&Scene{Title: "acme/web", Error: "backend unreachable"}, HTMLOptions{GenerateHint: "Run cqa graph 7 --regenerate"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"No graph yet", "backend unreachable", "cqa graph 7 --regenerate"} {
		if !strings.Contains(out, want) {
			t.Errorf("empty page missing %q", want)
		}
	}
	if strings.Contains(out, "cytoscape(") {
		t.Error("empty page should not start a canvas")
	}
}

func TestHTML_NilScene(t *testing.T) {
	if _, err := HTML(nil, DefaultOptions()); err == nil {
		t.Error("expected error for nil scene")
	}
}

func TestToCytoscape_CentersAndClasses(t *testing.T) {
	s := testScene(t)
	s.Selected = s.Nodes[0].ID
	s.Edges[0].Highlighted = true

	var decoded CytoscapeElements
	js, err := s.ToCytoscapeJSON()
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(js), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Nodes) != 3 || len(decoded.Edges) != 2 {
		t.Fatalf("got %d nodes %d edges", len(decoded.Nodes), len(decoded.Edges))
	}
	first := decoded.Nodes[0]
	if first.Position != s.Nodes[0].Center() {
		t.Errorf("position = %v, want center %v", first.Position, s.Nodes[0].Center())
	}
	if !strings.Contains(first.Classes, "selected") {
		t.Errorf("classes = %q", first.Classes)
	}
	if first.Data.Width <= s.Nodes[0].Size.W {
		t.Errorf("importance 8 should enlarge the node: %v", first.Data.Width)
	}
	for i, n := range decoded.Nodes {
		if want := s.Nodes[i].Node.Size(); n.Data.Size != want {
			t.Errorf("%s size = %d, want %d", n.Data.ID, n.Data.Size, want)
		}
	}
	if decoded.Nodes[0].Data.ID == "src/components/Nav.tsx" && decoded.Nodes[0].Data.Size != 120 {
		t.Errorf("Nav.tsx size = %d, want LOC 120", decoded.Nodes[0].Data.Size)
	}
	if !decoded.Edges[0].Data.LabelPriority || decoded.Edges[0].Data.Width != 4 {
		t.Errorf("heavy edge data = %+v", decoded.Edges[0].Data)
	}
	if !strings.Contains(decoded.Edges[1].Classes, "dashed") {
		t.Errorf("configures edge classes = %q", decoded.Edges[1].Classes)
	}
}

func TestSVG(t *testing.T) {
	s := testScene(t)
	s.Nodes[2].Visible = false
	s.Edges[1].Visible = false

	var buf bytes.Buffer
	if err := SVG(&buf, s, 1); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "<?xml") || !strings.Contains(out, "</svg>") {
		t.Fatalf("not an SVG document: %.80s", out)
	}
	if !strings.Contains(out, "Nav.tsx") {
		t.Error("visible node label missing")
	}
	if strings.Contains(out, "app.ts") {
		t.Error("hidden node was drawn")
	}
	if !strings.Contains(out, "fetchJSON") {
		t.Error("heavy edge label should be drawn at zoom 1")
	}
}

func TestPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, testScene(t), PNGOptions{}); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decoding png: %v", err)
	}
	r, g, b, _ := img.At(img.Bounds().Max.X-1, img.Bounds().Max.Y-1).RGBA()
	if r>>8 != 0x0f || g>>8 != 0x17 || b>>8 != 0x2a {
		t.Errorf("background = #%02x%02x%02x, want #0f172a", r>>8, g>>8, b>>8)
	}
}

func TestPNG_MaxSide(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, testScene(t), PNGOptions{Scale: 10, MaxSide: 900}); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() > 901 || b.Dy() > 901 {
		t.Errorf("image %dx%d exceeds max side", b.Dx(), b.Dy())
	}
}

func TestPNG_EmptyScene(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, &Scene{}, PNGOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatal(err)
	}
}
