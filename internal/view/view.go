package view

import (
	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/render"
)

// Stats summarise graph shape.
type Stats = render.Stats

// Density bands, by edges per node.
const (
	BandEmpty         = "empty"
	BandSparse        = "sparse"
	BandModerate      = "moderate"
	BandWellConnected = "well-connected"
	BandDense         = "dense"
)

// StatsFor computes counts, the edge/node ratio and its band.
func StatsFor(nodes, edges int) Stats {
	if nodes == 0 {
		return Stats{Nodes: 0, Edges: edges, Band: BandEmpty}
	}
	ratio := float64(edges) / float64(nodes)
	band := BandDense
	switch {
	case ratio < 0.8:
		band = BandSparse
	case ratio < 1.5:
		band = BandModerate
	case ratio < 3.0:
		band = BandWellConnected
	}
	return Stats{Nodes: nodes, Edges: edges, Ratio: ratio, Band: band}
}

// View is a snapshot of what the graph panel shows.
type View struct {
	Title  string `json:"title,omitempty"`
	RepoID string `json:"repo_id,omitempty"`

	// Nodes holds every laid-out node; Visible marks those passing the filter.
	Nodes     []render.SceneNode   `json:"nodes"`
	Edges     []render.SceneEdge   `json:"edges"`
	Selection *Selection           `json:"selection,omitempty"`
	Filter    Filter               `json:"filter"`
	Legend    []render.LegendEntry `json:"legend"`

	Stats     Stats       `json:"stats"`
	Caveats   []string    `json:"caveats,omitempty"`
	Mode      layout.Mode `json:"mode"`
	LOD       layout.LOD  `json:"lod,omitempty"`
	Strategy  string      `json:"strategy,omitempty"`
	FromCache bool        `json:"from_cache"`
	Fetched   bool        `json:"fetched"`
	Loading   bool        `json:"loading"`
	Error     string      `json:"error,omitempty"`
}

// Selection is the selected node and its visible neighbours.
type Selection struct {
	Node     graph.Node `json:"node"`
	Incoming []Neighbor `json:"incoming"`
	Outgoing []Neighbor `json:"outgoing"`
}

// Neighbor is one edge of the selected node and the node at its other end.
type Neighbor struct {
	Edge graph.Edge `json:"edge"`
	Node graph.Node `json:"node"`
}

// VisibleNodes returns the nodes passing the filter.
func (v *View) VisibleNodes() []render.SceneNode {
	var out []render.SceneNode
	for _, n := range v.Nodes {
		if n.Visible {
			out = append(out, n)
		}
	}
	return out
}

// VisibleEdges returns the edges whose endpoints are both visible.
func (v *View) VisibleEdges() []render.SceneEdge {
	var out []render.SceneEdge
	for _, e := range v.Edges {
		if e.Visible {
			out = append(out, e)
		}
	}
	return out
}

// HighlightedEdges returns the ids of edges incident to the selection.
func (v *View) HighlightedEdges() []string {
	var out []string
	for _, e := range v.Edges {
		if e.Highlighted {
			out = append(out, e.ID)
		}
	}
	return out
}

// Scene converts the view for the renderers.
func (v *View) Scene() *render.Scene {
	return &render.Scene{
		Title:     v.Title,
		RepoID:    v.RepoID,
		Nodes:     v.Nodes,
		Edges:     v.Edges,
		Selected:  v.Filter.SelectedID,
		Query:     v.Filter.Query,
		Legend:    v.Legend,
		Stats:     v.Stats,
		Caveats:   v.Caveats,
		Mode:      v.Mode,
		LOD:       v.LOD,
		Strategy:  v.Strategy,
		FromCache: v.FromCache,
		Error:     v.Error,
	}
}
