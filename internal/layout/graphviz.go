package layout

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/codebaseqa/cqa/internal/graph"
)

const pointsPerInch = 72.0

// Graphviz lays graphs out with the dot engine: ranked, orthogonal edges, with
// explicit node boxes.
type Graphviz struct{}

// NewGraphviz checks that the graphviz runtime can be instantiated.
func NewGraphviz(ctx context.Context) (*Graphviz, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	if err := gv.Close(); err != nil {
		return nil, fmt.Errorf("failed to close graphviz instance: %w", err)
	}
	return &Graphviz{}, nil
}

// Name implements Strategy.
func (g *Graphviz) Name() string { return string(KindGraphviz) }

// Compute implements Strategy.
func (g *Graphviz) Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error) {
	if len(nodes) == 0 {
		return map[string]Position{}, nil
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	gvGraph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz graph: %w", err)
	}
	defer gvGraph.Close()

	rankdir := graphviz.LRRank
	if p.Direction == TopBottom {
		rankdir = graphviz.TBRank
	}
	gvGraph.SetLayout("dot").
		SetRankDir(rankdir).
		SetSplines("ortho").
		SetNodeSeparator(inches(p.Spacing.NodeSep)).
		SetRankSeparator(inches(p.Spacing.RankSep))

	// graphviz names are positional so ids with odd characters never reach dot.
	ids := make(map[string]string, len(nodes))
	gvNodes := make(map[string]*graphviz.Node, len(nodes))
	for i, n := range nodes {
		name := "n" + strconv.Itoa(i)
		node, err := gvGraph.CreateNodeByName(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create node %s: %w", n.ID, err)
		}
		size := p.sizeOf(n.ID)
		node.SetShape("box")
		node.SetFixedSize(true)
		node.SetWidth(size.W / pointsPerInch)
		node.SetHeight(size.H / pointsPerInch)
		node.SetLabel("")
		ids[name] = n.ID
		gvNodes[n.ID] = node
	}

	for _, e := range edges {
		src, ok1 := gvNodes[e.Source]
		dst, ok2 := gvNodes[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		if _, err := gvGraph.CreateEdgeByName("", src, dst); err != nil {
			return nil, fmt.Errorf("failed to create edge %s: %w", e.ID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, gvGraph, "plain", &buf); err != nil {
		return nil, fmt.Errorf("graphviz render: %w", err)
	}

	byName, err := parsePlain(&buf)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Position, len(byName))
	for name, pos := range byName {
		if id, ok := ids[name]; ok {
			out[id] = pos
		}
	}
	return out, nil
}

func inches(px float64) float64 {
	return math.Round(px/pointsPerInch*1000) / 1000
}

// parsePlain reads node centers from graphviz "plain" output. Coordinates are
// inches with the origin bottom-left; the result is pixels with y pointing down.
func parsePlain(r *bytes.Buffer) (map[string]Position, error) {
	var height float64
	haveHeader := false
	out := make(map[string]Position)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "graph":
			if len(fields) < 4 {
				return nil, fmt.Errorf("malformed graph line: %q", scanner.Text())
			}
			h, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing graph height: %w", err)
			}
			height = h
			haveHeader = true
		case "node":
			if len(fields) < 4 {
				return nil, fmt.Errorf("malformed node line: %q", scanner.Text())
			}
			x, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing x of %s: %w", fields[1], err)
			}
			y, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing y of %s: %w", fields[1], err)
			}
			out[strings.Trim(fields[1], `"`)] = Position{
				X: x * pointsPerInch,
				Y: (height - y) * pointsPerInch,
			}
		case "stop":
			if !haveHeader {
				return nil, fmt.Errorf("plain output missing graph header")
			}
			return out, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading plain output: %w", err)
	}
	if !haveHeader {
		return nil, fmt.Errorf("plain output missing graph header")
	}
	return out, nil
}
