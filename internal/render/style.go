// Package render draws laid-out dependency graphs: an interactive HTML canvas
// backed by Cytoscape.js, and static SVG and PNG exports.
package render

import (
	"fmt"
	"image/color"

	"github.com/codebaseqa/cqa/internal/graph"
)

// DefaultExportName is the file name used for PNG exports.
const DefaultExportName = "dependency-graph.png"

var (
	// Background substituted for transparency in exports.
	bgDark = color.RGBA{0x0f, 0x17, 0x2a, 0xff}
	bgCard = color.RGBA{0x1e, 0x29, 0x3b, 0xff}

	textPrimary   = color.RGBA{0xf1, 0xf5, 0xf9, 0xff}
	textSecondary = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	accent        = color.RGBA{0xfb, 0xbf, 0x24, 0xff}
)

// NodeVisual is how a file type is drawn.
type NodeVisual struct {
	Color color.RGBA
	Icon  string
	Label string
}

var nodeVisuals = map[graph.FileType]NodeVisual{
	graph.TypeComponent: {color.RGBA{0x3b, 0x82, 0xf6, 0xff}, "◧", "Component"},
	graph.TypePage:      {color.RGBA{0x8b, 0x5c, 0xf6, 0xff}, "▤", "Page"},
	graph.TypeStore:     {color.RGBA{0xf5, 0x9e, 0x0b, 0xff}, "◉", "Store"},
	graph.TypeUtil:      {color.RGBA{0x10, 0xb9, 0x81, 0xff}, "⚙", "Utility"},
	graph.TypeAPI:       {color.RGBA{0xef, 0x44, 0x44, 0xff}, "⇄", "API"},
	graph.TypeConfig:    {color.RGBA{0x64, 0x74, 0x8b, 0xff}, "⚑", "Config"},
	graph.TypeSchema:    {color.RGBA{0xec, 0x48, 0x99, 0xff}, "▦", "Schema"},
	graph.TypeDefault:   {color.RGBA{0x94, 0xa3, 0xb8, 0xff}, "□", "File"},
	graph.TypeModule:    {color.RGBA{0x06, 0xb6, 0xd4, 0xff}, "▣", "Module"},
}

// CSS returns the color as a CSS hex string.
func (v NodeVisual) CSS() string { return cssRGBA(v.Color) }

// NodeStyle returns the visual for a file type. Unknown types get the default.
func NodeStyle(t graph.FileType) NodeVisual {
	if v, ok := nodeVisuals[t]; ok {
		return v
	}
	return nodeVisuals[graph.TypeDefault]
}

// EdgeVisual is how an edge relation is drawn.
type EdgeVisual struct {
	Color  color.RGBA
	Dashed bool
}

var edgeColors = map[string]color.RGBA{
	"imports":    {0x60, 0xa5, 0xfa, 0xff},
	"uses":       {0x34, 0xd3, 0x99, 0xff},
	"extends":    {0xc0, 0x84, 0xfc, 0xff},
	"calls":      {0xf9, 0x73, 0x16, 0xff},
	"configures": {0x94, 0xa3, 0xb8, 0xff},
}

var defaultEdgeColor = color.RGBA{0x64, 0x74, 0x8b, 0xff}

// EdgeStyle returns the visual for an edge type. uses and configures are dashed.
func EdgeStyle(edgeType string) EdgeVisual {
	c, ok := edgeColors[edgeType]
	if !ok {
		c = defaultEdgeColor
	}
	return EdgeVisual{
		Color:  c,
		Dashed: edgeType == "uses" || edgeType == "configures",
	}
}

// SizeMultiplier scales a node by importance. Importance is clamped to 1..10,
// so the largest node is at most 1.30/0.85 times the smallest.
func SizeMultiplier(importance int) float64 {
	imp := min(max(importance, 1), 10)
	return 0.85 + float64(imp-1)*0.05
}

// StrokeWidth maps an edge weight (clamped to 1..5) to a line width.
func StrokeWidth(weight int) float64 {
	w := min(max(weight, 1), 5)
	return 1 + float64(w-1)*0.75
}

// Edge labels appear at this zoom or closer for prominent edges.
const labelZoom = 0.9

// ShowEdgeLabel reports whether an edge's label is drawn. Highlighted edges
// always show it; otherwise only heavy or high-rank edges at sufficient zoom.
func ShowEdgeLabel(e graph.Edge, highlighted bool, zoom float64) bool {
	if highlighted {
		return true
	}
	return zoom >= labelZoom && labelPriority(e)
}

func labelPriority(e graph.Edge) bool {
	return e.Weight >= 4 || (e.HasRank && e.Rank >= 0.7)
}

func cssRGBA(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func withAlpha(c color.RGBA, a uint8) color.NRGBA {
	return color.NRGBA{c.R, c.G, c.B, a}
}
