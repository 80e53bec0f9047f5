package render

import (
	"math"

	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
)

// Scene is everything a renderer needs: positioned nodes, their edges and the
// current filter and selection state.
type Scene struct {
	Title  string
	RepoID string

	Nodes []SceneNode
	Edges []SceneEdge

	Selected string
	Query    string
	Legend   []LegendEntry

	Stats     Stats
	Caveats   []string
	Mode      layout.Mode
	LOD       layout.LOD
	Strategy  string
	FromCache bool
	Error     string
}

// SceneNode is a laid-out node plus its visibility under the current filters.
type SceneNode struct {
	layout.LaidOutNode
	Visible bool `json:"visible"`
	Matched bool `json:"matched"`
	Degree  int  `json:"degree"`
}

// SceneEdge is an edge plus its visibility and highlight state.
type SceneEdge struct {
	graph.Edge
	Visible     bool `json:"visible"`
	Highlighted bool `json:"highlighted"`
}

// LegendEntry is one row of the type legend.
type LegendEntry struct {
	Type   graph.FileType `json:"type"`
	Label  string         `json:"label"`
	Color  string         `json:"color"`
	Count  int            `json:"count"`
	Active bool           `json:"active"`
}

// Stats summarise graph shape for the stats bar.
type Stats struct {
	Nodes int     `json:"nodes"`
	Edges int     `json:"edges"`
	Ratio float64 `json:"ratio"`
	Band  string  `json:"band"`
}

// IsEmpty reports whether the scene has no nodes at all.
func (s *Scene) IsEmpty() bool {
	return s == nil || len(s.Nodes) == 0
}

// VisibleNodes returns the nodes that pass the current filters.
func (s *Scene) VisibleNodes() []SceneNode {
	var out []SceneNode
	for _, n := range s.Nodes {
		if n.Visible {
			out = append(out, n)
		}
	}
	return out
}

// VisibleEdges returns the edges whose endpoints are both visible.
func (s *Scene) VisibleEdges() []SceneEdge {
	var out []SceneEdge
	for _, e := range s.Edges {
		if e.Visible {
			out = append(out, e)
		}
	}
	return out
}

// box is a node's drawn rectangle after importance scaling, centered on the
// laid-out center.
type box struct {
	X, Y, W, H float64
}

func nodeBox(n SceneNode) box {
	c := n.Center()
	m := SizeMultiplier(n.Importance)
	w, h := n.Size.W*m, n.Size.H*m
	return box{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}
}

// bounds returns the extent of the visible nodes.
func bounds(nodes []SceneNode) (minX, minY, maxX, maxY float64) {
	if len(nodes) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		b := nodeBox(n)
		minX = math.Min(minX, b.X)
		minY = math.Min(minY, b.Y)
		maxX = math.Max(maxX, b.X+b.W)
		maxY = math.Max(maxY, b.Y+b.H)
	}
	return minX, minY, maxX, maxY
}

// anchors returns where an edge leaves its source and enters its target.
func anchors(src, dst SceneNode) (sx, sy, tx, ty float64) {
	sb, tb := nodeBox(src), nodeBox(dst)
	sx, sy = handlePoint(sb, src.SourceHandle)
	tx, ty = handlePoint(tb, dst.TargetHandle)
	return sx, sy, tx, ty
}

func handlePoint(b box, h layout.Handle) (float64, float64) {
	switch h {
	case layout.HandleLeft:
		return b.X, b.Y + b.H/2
	case layout.HandleTop:
		return b.X + b.W/2, b.Y
	case layout.HandleBottom:
		return b.X + b.W/2, b.Y + b.H
	default:
		return b.X + b.W, b.Y + b.H/2
	}
}

// route returns an orthogonal polyline between two anchors.
func route(sx, sy, tx, ty float64, vertical bool) [][2]float64 {
	if vertical {
		my := (sy + ty) / 2
		return [][2]float64{{sx, sy}, {sx, my}, {tx, my}, {tx, ty}}
	}
	mx := (sx + tx) / 2
	return [][2]float64{{sx, sy}, {mx, sy}, {mx, ty}, {tx, ty}}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
