package graph

import (
	"sort"
	"strconv"
	"strings"
)

// Entity discriminates file nodes from aggregated module nodes.
type Entity string

const (
	EntityFile   Entity = "file"
	EntityModule Entity = "module"
)

func parseEntity(s string) Entity {
	if strings.EqualFold(strings.TrimSpace(s), string(EntityModule)) {
		return EntityModule
	}
	return EntityFile
}

// DefaultEdgeType is used for edges that arrive without a type.
const DefaultEdgeType = "imports"

// Node is a render-ready node. Defaults are applied once by Adapt, so renderers
// never need to check for missing fields.
type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	FilePath    string   `json:"file_path"`
	Entity      Entity   `json:"entity"`
	Type        FileType `json:"type"`
	Group       string   `json:"group,omitempty"`
	Description string   `json:"description,omitempty"`
	Importance  int      `json:"importance"`
	LOC         int      `json:"loc,omitempty"`
	Exports     []string `json:"exports,omitempty"`

	InDegree   int     `json:"in_degree,omitempty"`
	OutDegree  int     `json:"out_degree,omitempty"`
	Centrality float64 `json:"centrality,omitempty"`

	// Module-only.
	MemberCount   int      `json:"member_count,omitempty"`
	DominantTypes []string `json:"dominant_types,omitempty"`
	TopFiles      []string `json:"top_files,omitempty"`
	InternalEdges int      `json:"internal_edges,omitempty"`
	ExternalEdges int      `json:"external_edges,omitempty"`
	Density       float64  `json:"density,omitempty"`
}

// IsModule reports whether n is an aggregated module node.
func (n Node) IsModule() bool { return n.Entity == EntityModule }

// Size returns LOC for files and member count for modules.
func (n Node) Size() int {
	if n.IsModule() {
		return n.MemberCount
	}
	return n.LOC
}

// Edge is a render-ready edge whose endpoints are guaranteed to exist.
type Edge struct {
	ID              string  `json:"id"`
	Source          string  `json:"source"`
	Target          string  `json:"target"`
	Type            string  `json:"type"`
	Label           string  `json:"label"`
	Relation        string  `json:"relation,omitempty"`
	Weight          int     `json:"weight"`
	Confidence      float64 `json:"confidence,omitempty"`
	Rank            float64 `json:"rank,omitempty"`
	HasRank         bool    `json:"-"`
	AggregatedCount int     `json:"aggregated_count,omitempty"`
}

// EdgeID is the stable id of the edge from source to target.
func EdgeID(source, target string) string { return source + "-" + target }

// Adapted is the output of Adapt.
type Adapted struct {
	Nodes []Node
	Edges []Edge
	Meta  *Meta

	index map[string]int
}

// Node looks up a node by id.
func (a *Adapted) Node(id string) (Node, bool) {
	if a == nil {
		return Node{}, false
	}
	i, ok := a.index[id]
	if !ok {
		return Node{}, false
	}
	return a.Nodes[i], true
}

// Has reports whether a node with the given id exists.
func (a *Adapted) Has(id string) bool {
	_, ok := a.Node(id)
	return ok
}

// Neighbors returns the edges arriving at and leaving id, in payload order.
func (a *Adapted) Neighbors(id string) (incoming, outgoing []Edge) {
	if a == nil {
		return nil, nil
	}
	for _, e := range a.Edges {
		if e.Target == id {
			incoming = append(incoming, e)
		}
		if e.Source == id {
			outgoing = append(outgoing, e)
		}
	}
	return incoming, outgoing
}

// Degree counts edges incident to id. A self loop counts once.
func (a *Adapted) Degree(id string) int {
	if a == nil {
		return 0
	}
	d := 0
	for _, e := range a.Edges {
		if e.Source == id || e.Target == id {
			d++
		}
	}
	return d
}

// Types returns the distinct node types present, in AllTypes order.
func (a *Adapted) Types() []FileType {
	if a == nil {
		return nil
	}
	seen := make(map[FileType]bool)
	for _, n := range a.Nodes {
		seen[n.Type] = true
	}
	var out []FileType
	for _, t := range AllTypes {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// Adapt turns a backend payload into render-ready nodes and edges. It never fails:
// nodes without an id are skipped, duplicate ids keep the first occurrence, edges
// whose endpoints are not both present are dropped, and missing optional fields
// get defaults.
func Adapt(p *Payload) *Adapted {
	a := &Adapted{index: make(map[string]int)}
	if p == nil {
		return a
	}
	a.Meta = p.Meta

	for _, raw := range p.Nodes {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			continue
		}
		if _, dup := a.index[id]; dup {
			continue
		}
		a.index[id] = len(a.Nodes)
		a.Nodes = append(a.Nodes, adaptNode(id, raw))
	}

	// Duplicates are keyed on the endpoint pair; "a-b"->"c" and "a"->"b-c" share
	// an EdgeID, so a later clash gets a numeric suffix.
	seenPairs := make(map[[2]string]bool)
	usedIDs := make(map[string]bool)
	for _, raw := range p.Edges {
		src, dst := strings.TrimSpace(raw.Source), strings.TrimSpace(raw.Target)
		if !a.Has(src) || !a.Has(dst) {
			continue
		}
		pair := [2]string{src, dst}
		if seenPairs[pair] {
			continue
		}
		seenPairs[pair] = true
		e := adaptEdge(src, dst, raw)
		if usedIDs[e.ID] {
			base := e.ID
			for i := 1; usedIDs[e.ID]; i++ {
				e.ID = base + "#" + strconv.Itoa(i)
			}
		}
		usedIDs[e.ID] = true
		a.Edges = append(a.Edges, e)
	}

	// Fill degrees the server did not send.
	in := make(map[string]int)
	out := make(map[string]int)
	for _, e := range a.Edges {
		out[e.Source]++
		in[e.Target]++
	}
	for i := range a.Nodes {
		n := &a.Nodes[i]
		if n.InDegree == 0 {
			n.InDegree = in[n.ID]
		}
		if n.OutDegree == 0 {
			n.OutDegree = out[n.ID]
		}
	}
	return a
}

func adaptNode(id string, raw NodeData) Node {
	entity := parseEntity(raw.Entity)
	label := strings.TrimSpace(raw.Label)
	if label == "" {
		label = lastSegment(id)
	}

	n := Node{
		ID:          id,
		Label:       label,
		FilePath:    id,
		Entity:      entity,
		Type:        ResolveType(raw.Type, id, entity),
		Group:       raw.Group,
		Description: raw.Description,
		Importance:  clampInt(raw.Importance.Int(1), 1, 10),
		LOC:         max(raw.LOC.Int(0), 0),
		Exports:     []string(raw.Exports),
	}
	if raw.Metrics != nil {
		n.InDegree = max(raw.Metrics.InDegree.Int(0), 0)
		n.OutDegree = max(raw.Metrics.OutDegree.Int(0), 0)
		n.Centrality = raw.Metrics.Centrality.Float(0)
	}
	if entity == EntityModule {
		if raw.ModuleKey != "" && n.Group == "" {
			n.Group = raw.ModuleKey
		}
		n.MemberCount = max(raw.MemberCount.Int(0), 0)
		n.LOC = max(raw.LOCTotal.Int(n.LOC), 0)
		n.DominantTypes = []string(raw.DominantTypes)
		n.TopFiles = []string(raw.TopFiles)
		n.InternalEdges = max(raw.InternalEdges.Int(0), 0)
		n.ExternalEdges = max(raw.ExternalEdges.Int(0), 0)
		n.Density = raw.Density.Float(0)
	}
	return n
}

func adaptEdge(src, dst string, raw EdgeData) Edge {
	typ := strings.TrimSpace(raw.Type)
	if typ == "" {
		typ = strings.TrimSpace(raw.Relation)
	}
	if typ == "" {
		typ = DefaultEdgeType
	}
	label := strings.TrimSpace(raw.Label)
	if label == "" {
		label = typ
	}
	e := Edge{
		ID:              EdgeID(src, dst),
		Source:          src,
		Target:          dst,
		Type:            strings.ToLower(typ),
		Label:           label,
		Relation:        raw.Relation,
		Weight:          clampInt(raw.Weight.Int(1), 1, 5),
		Confidence:      raw.Confidence.Float(0),
		AggregatedCount: max(raw.AggregatedCount.Int(0), 0),
	}
	if raw.Rank.Set {
		e.Rank = clampFloat(raw.Rank.Value, 0, 1)
		e.HasRank = true
	}
	return e
}

func lastSegment(id string) string {
	trimmed := strings.TrimRight(strings.ReplaceAll(id, `\`, "/"), "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		return trimmed[i+1:]
	}
	if trimmed == "" {
		return id
	}
	return trimmed
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// SortedIDs returns the node ids in lexical order.
func (a *Adapted) SortedIDs() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, 0, len(a.Nodes))
	for _, n := range a.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}
