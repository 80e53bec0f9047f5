package layout

import (
	"sort"
	"strconv"
	"strings"

	"github.com/codebaseqa/cqa/internal/graph"
)

// Signature fingerprints the structure of a graph. Nodes contribute
// id, entity and group; edges contribute source, target and relation. Each
// field is length-prefixed so ids containing separators cannot collide, and
// both lists are sorted so the result does not depend on payload order.
func Signature(nodes []graph.Node, edges []graph.Edge) string {
	ns := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ns = append(ns, fields(n.ID, string(n.Entity), n.Group))
	}
	sort.Strings(ns)

	es := make([]string, 0, len(edges))
	for _, e := range edges {
		es = append(es, fields(e.Source, e.Target, relationOf(e)))
	}
	sort.Strings(es)

	var b strings.Builder
	b.WriteString("n")
	b.WriteString(strconv.Itoa(len(ns)))
	b.WriteByte(';')
	for _, s := range ns {
		b.WriteString(s)
	}
	b.WriteString("e")
	b.WriteString(strconv.Itoa(len(es)))
	b.WriteByte(';')
	for _, s := range es {
		b.WriteString(s)
	}
	return b.String()
}

// fields encodes each value as <len>:<value>.
func fields(vals ...string) string {
	var b strings.Builder
	for _, v := range vals {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}

func relationOf(e graph.Edge) string {
	if e.Relation != "" {
		return e.Relation
	}
	return e.Type
}
