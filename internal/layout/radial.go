package layout

import (
	"context"
	"math"

	"github.com/codebaseqa/cqa/internal/graph"
)

// Radial puts each rank of the layered ranking on its own ring around the origin.
type Radial struct{}

// NewRadial returns the radial strategy.
func NewRadial() *Radial { return &Radial{} }

// Name implements Strategy.
func (r *Radial) Name() string { return string(KindRadial) }

// Compute implements Strategy.
func (r *Radial) Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error) {
	layers, err := orderedLayers(ctx, nodes, edges)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Position, len(nodes))
	radius := 0.0
	for i, layer := range layers {
		if len(layer) == 0 {
			continue
		}

		widest := 0.0
		for _, v := range layer {
			s := p.sizeOf(v)
			widest = max(widest, math.Hypot(s.W, s.H))
		}
		if i == 0 && len(layer) == 1 {
			out[layer[0]] = Position{}
			radius = widest/2 + p.Spacing.RankSep
			continue
		}

		// The ring must be long enough to fit every node with its gap.
		minCircumference := float64(len(layer)) * (widest + p.Spacing.NodeSep)
		radius = max(radius, minCircumference/(2*math.Pi), widest)

		step := 2 * math.Pi / float64(len(layer))
		offset := float64(i) * step / 2
		for j, v := range layer {
			angle := offset + float64(j)*step - math.Pi/2
			out[v] = Position{
				X: radius * math.Cos(angle),
				Y: radius * math.Sin(angle),
			}
		}
		radius += widest + p.Spacing.RankSep
	}
	return out, nil
}
