package layout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codebaseqa/cqa/internal/graph"
)

// Position is a point in screen pixels, y growing downwards.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a node box in pixels.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Mode selects a layout family.
type Mode string

const (
	ModeHorizontal Mode = "horizontal"
	ModeVertical   Mode = "vertical"
	ModeRadial     Mode = "radial"
)

// Modes lists the supported modes, default first.
var Modes = []Mode{ModeHorizontal, ModeVertical, ModeRadial}

// ParseMode accepts a mode name case-insensitively; "" means horizontal.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHorizontal:
		return ModeHorizontal, nil
	case ModeVertical:
		return ModeVertical, nil
	case ModeRadial:
		return ModeRadial, nil
	}
	return "", fmt.Errorf("invalid layout mode %q (must be horizontal, vertical, or radial)", s)
}

// Direction is the rank direction of a layered layout.
type Direction string

const (
	LeftRight Direction = "LR"
	TopBottom Direction = "TB"
)

// LOD is the level of detail nodes are drawn with.
type LOD string

const (
	LODFull    LOD = "full"
	LODCompact LOD = "compact"
)

// CompactThreshold is the node count above which nodes are drawn compact.
const CompactThreshold = 80

// LODFor picks the level of detail for a graph with n nodes.
func LODFor(n int) LOD {
	if n > CompactThreshold {
		return LODCompact
	}
	return LODFull
}

// NodeSize returns the box used for a node at the given level of detail.
func NodeSize(entity graph.Entity, lod LOD) Size {
	switch {
	case entity == graph.EntityModule && lod == LODCompact:
		return Size{W: 200, H: 56}
	case entity == graph.EntityModule:
		return Size{W: 260, H: 96}
	case lod == LODCompact:
		return Size{W: 180, H: 40}
	default:
		return Size{W: 220, H: 64}
	}
}

// Spacing holds the gaps between nodes in a rank and between ranks.
type Spacing struct {
	NodeSep float64 `json:"node_sep"`
	RankSep float64 `json:"rank_sep"`
}

// SpacingFor widens spacing for larger or denser graphs.
func SpacingFor(nodes, edges int) Spacing {
	ratio := 0.0
	if nodes > 0 {
		ratio = float64(edges) / float64(nodes)
	}
	switch {
	case nodes > 150 || ratio > 3.0:
		return Spacing{NodeSep: 80, RankSep: 220}
	case nodes > 60 || ratio > 2.0:
		return Spacing{NodeSep: 60, RankSep: 160}
	default:
		return Spacing{NodeSep: 40, RankSep: 110}
	}
}

// Params carries everything a strategy needs besides the graph itself.
type Params struct {
	Direction Direction
	Spacing   Spacing
	Sizes     map[string]Size
}

func (p Params) sizeOf(id string) Size {
	if s, ok := p.Sizes[id]; ok {
		return s
	}
	return NodeSize(graph.EntityFile, LODFull)
}

// NewParams derives sizes and spacing for a graph.
func NewParams(nodes []graph.Node, edges []graph.Edge, dir Direction) Params {
	lod := LODFor(len(nodes))
	sizes := make(map[string]Size, len(nodes))
	for _, n := range nodes {
		sizes[n.ID] = NodeSize(n.Entity, lod)
	}
	return Params{
		Direction: dir,
		Spacing:   SpacingFor(len(nodes), len(edges)),
		Sizes:     sizes,
	}
}

// Strategy computes node center positions. Implementations may leave nodes out;
// the engine places anything missing at the origin.
type Strategy interface {
	Name() string
	Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error)
}

// Kind names a strategy for NewStrategy.
type Kind string

const (
	KindGraphviz Kind = "graphviz"
	KindLayered  Kind = "layered"
	KindRadial   Kind = "radial"
)

// NewStrategy constructs the named strategy. When the graphviz runtime cannot be
// started it returns the layered strategy instead and logs why.
func NewStrategy(ctx context.Context, kind Kind, logger *slog.Logger) Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	switch kind {
	case KindGraphviz:
		gv, err := NewGraphviz(ctx)
		if err != nil {
			logger.Warn("graphviz unavailable, using layered layout", "error", err)
			return NewLayered()
		}
		return gv
	case KindRadial:
		return NewRadial()
	default:
		return NewLayered()
	}
}
