package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codebaseqa/cqa/internal/layout"
)

// CytoscapeElements represents the Cytoscape.js data format.
type CytoscapeElements struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// CytoscapeNode represents a node in Cytoscape.js format. Position is the node
// center, which is what the preset layout expects.
type CytoscapeNode struct {
	Data     CytoscapeNodeData `json:"data"`
	Position layout.Position   `json:"position"`
	Classes  string            `json:"classes,omitempty"`
}

// CytoscapeNodeData contains the node data fields.
type CytoscapeNodeData struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Display     string   `json:"display"`
	Path        string   `json:"path"`
	Type        string   `json:"type"`
	TypeLabel   string   `json:"typeLabel"`
	Entity      string   `json:"entity"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
	Width       float64  `json:"w"`
	Height      float64  `json:"h"`
	Importance  int      `json:"importance"`
	Size        int      `json:"size"`
	Degree      int      `json:"degree"`
	Description string   `json:"description,omitempty"`
	Exports     []string `json:"exports,omitempty"`
	TopFiles    []string `json:"topFiles,omitempty"`
	Group       string   `json:"group,omitempty"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format.
type CytoscapeEdge struct {
	Data    CytoscapeEdgeData `json:"data"`
	Classes string            `json:"classes,omitempty"`
}

// CytoscapeEdgeData contains the edge data fields.
type CytoscapeEdgeData struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Type          string  `json:"type"`
	Label         string  `json:"label"`
	Color         string  `json:"color"`
	Width         float64 `json:"width"`
	Weight        int     `json:"weight"`
	Rank          float64 `json:"rank"`
	LabelPriority bool    `json:"labelPriority"`
}

// ToCytoscape converts a scene to Cytoscape.js elements. Filtered-out nodes and
// edges are kept with the "hidden" class so the page can toggle them without a
// relayout.
func (s *Scene) ToCytoscape() CytoscapeElements {
	elements := CytoscapeElements{
		Nodes: make([]CytoscapeNode, 0, len(s.Nodes)),
		Edges: make([]CytoscapeEdge, 0, len(s.Edges)),
	}

	for _, n := range s.Nodes {
		style := NodeStyle(n.Type)
		b := nodeBox(n)
		node := CytoscapeNode{
			Data: CytoscapeNodeData{
				ID:          n.ID,
				Label:       n.Label,
				Display:     displayLabel(n, s.LOD),
				Path:        n.FilePath,
				Type:        string(n.Type),
				TypeLabel:   style.Label,
				Entity:      string(n.Entity),
				Icon:        style.Icon,
				Color:       cssRGBA(style.Color),
				Width:       b.W,
				Height:      b.H,
				Importance:  n.Importance,
				Size:        n.Node.Size(),
				Degree:      n.Degree,
				Description: n.Description,
				Exports:     n.Exports,
				TopFiles:    n.TopFiles,
				Group:       n.Group,
			},
			Position: n.Center(),
			Classes:  nodeClasses(s, n),
		}
		elements.Nodes = append(elements.Nodes, node)
	}

	for _, e := range s.Edges {
		style := EdgeStyle(e.Type)
		classes := ""
		if style.Dashed {
			classes = "dashed"
		}
		if !e.Visible {
			classes = joinClass(classes, "hidden")
		}
		if e.Highlighted {
			classes = joinClass(classes, "highlighted")
		}
		elements.Edges = append(elements.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:            e.ID,
				Source:        e.Source,
				Target:        e.Target,
				Type:          e.Type,
				Label:         e.Label,
				Color:         cssRGBA(style.Color),
				Width:         StrokeWidth(e.Weight),
				Weight:        e.Weight,
				Rank:          e.Rank,
				LabelPriority: labelPriority(e.Edge),
			},
			Classes: classes,
		})
	}
	return elements
}

// ToCytoscapeJSON converts a scene to Cytoscape.js JSON.
func (s *Scene) ToCytoscapeJSON() (string, error) {
	jsonBytes, err := json.Marshal(s.ToCytoscape())
	if err != nil {
		return "", fmt.Errorf("marshaling Cytoscape elements to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// displayLabel is the multi-line node text. Compact nodes show the label and
// type only; full nodes add size and degree.
func displayLabel(n SceneNode, lod layout.LOD) string {
	style := NodeStyle(n.Type)
	label := style.Icon + " " + truncate(n.Label, 28) + "\n" + strings.ToUpper(style.Label)
	if lod == layout.LODCompact {
		return label
	}
	return label + "\n" + statsLine(n)
}

func statsLine(n SceneNode) string {
	if n.IsModule() {
		return fmt.Sprintf("%d files · deg %d", n.MemberCount, n.Degree)
	}
	return fmt.Sprintf("%d LOC · deg %d", n.LOC, n.Degree)
}

func nodeClasses(s *Scene, n SceneNode) string {
	classes := string(s.LOD)
	if n.IsModule() {
		classes = joinClass(classes, "module")
	}
	if !n.Visible {
		classes = joinClass(classes, "hidden")
	}
	if n.ID == s.Selected {
		classes = joinClass(classes, "selected")
	}
	return classes
}

func joinClass(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
