package layout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	dgraph "github.com/dominikbraun/graph"

	"github.com/codebaseqa/cqa/internal/graph"
)

// crossingSweeps is the number of down+up barycenter passes.
const crossingSweeps = 4

// Layered is a deterministic rank-based layout. Phases: cycle removal, longest
// path ranking, barycenter ordering, coordinate assignment.
type Layered struct{}

// NewLayered returns the layered strategy.
func NewLayered() *Layered { return &Layered{} }

// Name implements Strategy.
func (l *Layered) Name() string { return string(KindLayered) }

// Compute implements Strategy.
func (l *Layered) Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error) {
	layers, err := orderedLayers(ctx, nodes, edges)
	if err != nil {
		return nil, err
	}
	return assignCoordinates(layers, p), nil
}

// acyclic builds a DAG from the graph, dropping any edge that would close a
// cycle. Dropped edges only affect ranking; they are still drawn.
func acyclic(nodes []graph.Node, edges []graph.Edge) (dgraph.Graph[string, string], error) {
	g := dgraph.New(dgraph.StringHash, dgraph.Directed(), dgraph.PreventCycles())

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := g.AddVertex(id); err != nil && !errors.Is(err, dgraph.ErrVertexAlreadyExists) {
			return nil, fmt.Errorf("adding vertex %s: %w", id, err)
		}
	}

	sorted := append([]graph.Edge(nil), edges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Target < sorted[j].Target
	})
	for _, e := range sorted {
		err := g.AddEdge(e.Source, e.Target)
		switch {
		case err == nil,
			errors.Is(err, dgraph.ErrEdgeCreatesCycle),
			errors.Is(err, dgraph.ErrEdgeAlreadyExists),
			errors.Is(err, dgraph.ErrVertexNotFound):
		default:
			return nil, fmt.Errorf("adding edge %s: %w", e.ID, err)
		}
	}
	return g, nil
}

// orderedLayers assigns ranks by longest path and orders each rank to reduce
// crossings.
func orderedLayers(ctx context.Context, nodes []graph.Node, edges []graph.Edge) ([][]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	g, err := acyclic(nodes, edges)
	if err != nil {
		return nil, err
	}
	order, err := dgraph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, fmt.Errorf("topological sort: %w", err)
	}
	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("predecessor map: %w", err)
	}
	succs, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("adjacency map: %w", err)
	}

	rank := make(map[string]int, len(order))
	maxRank := 0
	for _, v := range order {
		r := 0
		for p := range preds[v] {
			r = max(r, rank[p]+1)
		}
		rank[v] = r
		maxRank = max(maxRank, r)
	}

	layers := make([][]string, maxRank+1)
	for _, v := range order {
		layers[rank[v]] = append(layers[rank[v]], v)
	}

	index := make(map[string]float64, len(order))
	reindex := func(layer []string) {
		for i, v := range layer {
			index[v] = float64(i)
		}
	}
	for _, layer := range layers {
		reindex(layer)
	}

	for sweep := 0; sweep < crossingSweeps; sweep++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for r := 1; r < len(layers); r++ {
			sortByBarycenter(layers[r], index, func(v string) []string { return keys(preds[v]) })
			reindex(layers[r])
		}
		for r := len(layers) - 2; r >= 0; r-- {
			sortByBarycenter(layers[r], index, func(v string) []string { return keys(succs[v]) })
			reindex(layers[r])
		}
	}
	return layers, nil
}

func sortByBarycenter(layer []string, index map[string]float64, neighbours func(string) []string) {
	bary := make(map[string]float64, len(layer))
	for _, v := range layer {
		ns := neighbours(v)
		if len(ns) == 0 {
			bary[v] = index[v]
			continue
		}
		sum := 0.0
		for _, n := range ns {
			sum += index[n]
		}
		bary[v] = sum / float64(len(ns))
	}
	sort.SliceStable(layer, func(i, j int) bool {
		if bary[layer[i]] != bary[layer[j]] {
			return bary[layer[i]] < bary[layer[j]]
		}
		return index[layer[i]] < index[layer[j]]
	})
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// assignCoordinates places ranks along the main axis and stacks each rank
// centered on the cross axis.
func assignCoordinates(layers [][]string, p Params) map[string]Position {
	out := make(map[string]Position)
	horizontal := p.Direction != TopBottom

	along := 0.0
	for _, layer := range layers {
		depth := 0.0
		span := 0.0
		for i, v := range layer {
			s := p.sizeOf(v)
			if horizontal {
				depth = max(depth, s.W)
				span += s.H
			} else {
				depth = max(depth, s.H)
				span += s.W
			}
			if i > 0 {
				span += p.Spacing.NodeSep
			}
		}

		cross := -span / 2
		for _, v := range layer {
			s := p.sizeOf(v)
			extent := s.H
			if !horizontal {
				extent = s.W
			}
			center := cross + extent/2
			if horizontal {
				out[v] = Position{X: along + depth/2, Y: center}
			} else {
				out[v] = Position{X: center, Y: along + depth/2}
			}
			cross += extent + p.Spacing.NodeSep
		}
		along += depth + p.Spacing.RankSep
	}
	return out
}
