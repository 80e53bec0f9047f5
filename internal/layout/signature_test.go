package layout

import (
	"math/rand"
	"testing"

	"github.com/codebaseqa/cqa/internal/graph"
)

func sampleGraph() ([]graph.Node, []graph.Edge) {
	a := graph.Adapt(&graph.Payload{
		Nodes: []graph.NodeData{
			{ID: "src/app.ts", Group: "src"},
			{ID: "src/components/Nav.tsx", Group: "src/components"},
			{ID: "src/lib/fetch.ts", Group: "src/lib"},
			{ID: "src/store/user.ts", Group: "src/store"},
			{ID: "mod:ui", Entity: "module"},
		},
		Edges: []graph.EdgeData{
			{Source: "src/app.ts", Target: "src/components/Nav.tsx"},
			{Source: "src/app.ts", Target: "src/store/user.ts", Type: "uses"},
			{Source: "src/components/Nav.tsx", Target: "src/lib/fetch.ts", Relation: "calls"},
			{Source: "src/store/user.ts", Target: "src/lib/fetch.ts"},
			{Source: "src/lib/fetch.ts", Target: "src/app.ts"},
		},
	})
	return a.Nodes, a.Edges
}

func TestSignature_OrderIndependent(t *testing.T) {
	nodes, edges := sampleGraph()
	want := Signature(nodes, edges)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		ns := append([]graph.Node(nil), nodes...)
		es := append([]graph.Edge(nil), edges...)
		r.Shuffle(len(ns), func(i, j int) { ns[i], ns[j] = ns[j], ns[i] })
		r.Shuffle(len(es), func(i, j int) { es[i], es[j] = es[j], es[i] })
		if got := Signature(ns, es); got != want {
			t.Fatalf("signature changed after shuffle:\n got %s\nwant %s", got, want)
		}
	}
}

func TestSignature_SensitiveToStructure(t *testing.T) {
	nodes, edges := sampleGraph()
	base := Signature(nodes, edges)

	tests := []struct {
		name  string
		nodes []graph.Node
		edges []graph.Edge
	}{
		{"edge removed", nodes, edges[1:]},
		{"node removed", nodes[1:], edges},
		{"group changed", withGroup(nodes, 0, "other"), edges},
		{"relation changed", nodes, withType(edges, 0, "extends")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Signature(tt.nodes, tt.edges); got == base {
				t.Errorf("signature unchanged")
			}
		})
	}
}

func TestSignature_IgnoresPresentationFields(t *testing.T) {
	nodes, edges := sampleGraph()
	base := Signature(nodes, edges)

	ns := append([]graph.Node(nil), nodes...)
	ns[0].Label = "renamed"
	ns[0].Importance = 9
	if got := Signature(ns, edges); got != base {
		t.Errorf("label/importance changed the signature")
	}
}

func TestKey_ModePrefix(t *testing.T) {
	nodes, edges := sampleGraph()
	h := Key(nodes, edges, ModeHorizontal)
	if h != Signature(nodes, edges) {
		t.Errorf("horizontal key should equal signature")
	}
	if v := Key(nodes, edges, ModeVertical); v == h {
		t.Errorf("vertical key should differ from horizontal")
	}
	if r := Key(nodes, edges, ModeRadial); r == Key(nodes, edges, ModeVertical) {
		t.Errorf("radial key should differ from vertical")
	}
}

func withGroup(nodes []graph.Node, i int, group string) []graph.Node {
	out := append([]graph.Node(nil), nodes...)
	out[i].Group = group
	return out
}

func withType(edges []graph.Edge, i int, typ string) []graph.Edge {
	out := append([]graph.Edge(nil), edges...)
	out[i].Type = typ
	out[i].Relation = ""
	return out
}

func TestSignature_SeparatorsInIDs(t *testing.T) {
	node := func(id, group string) graph.Node { return graph.Node{ID: id, Entity: graph.EntityFile, Group: group} }
	edge := func(src, dst, rel string) graph.Edge { return graph.Edge{Source: src, Target: dst, Type: rel} }

	tests := []struct {
		name   string
		nodesA []graph.Node
		edgesA []graph.Edge
		nodesB []graph.Node
		edgesB []graph.Edge
	}{
		{
			name:   "colon in group",
			nodesA: []graph.Node{node("a", "x:file:y")},
			nodesB: []graph.Node{node("a", "x"), node("a:file:y", "")},
		},
		{
			name:   "pipe in id",
			nodesA: []graph.Node{node("a|b", "")},
			nodesB: []graph.Node{node("a", ""), node("b", "")},
		},
		{
			name:   "arrow in id",
			nodesA: []graph.Node{node("a->b", ""), node("c", ""), node("a", ""), node("b->c", "")},
			edgesA: []graph.Edge{edge("a->b", "c", "imports")},
			nodesB: []graph.Node{node("a->b", ""), node("c", ""), node("a", ""), node("b->c", "")},
			edgesB: []graph.Edge{edge("a", "b->c", "imports")},
		},
		{
			name:   "colon in relation",
			nodesA: []graph.Node{node("a", ""), node("b", "")},
			edgesA: []graph.Edge{edge("a", "b", "x:y")},
			nodesB: []graph.Node{node("a", ""), node("b", "")},
			edgesB: []graph.Edge{edge("a", "b:x", "y")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Signature(tt.nodesA, tt.edgesA) == Signature(tt.nodesB, tt.edgesB) {
				t.Errorf("different graphs share signature %q", Signature(tt.nodesA, tt.edgesA))
			}
		})
	}
}
