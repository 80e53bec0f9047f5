// Package graph holds the dependency-graph data model and the adapter that turns a
// backend payload into render-ready nodes and edges.
package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Payload is the body returned by GET /api/learning/{repoId}/graph.
type Payload struct {
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
	Meta  *Meta      `json:"meta,omitempty"`
}

// NodeData is a graph node as the backend sends it. Everything except ID is optional.
type NodeData struct {
	ID          string     `json:"id"`
	Label       string     `json:"label,omitempty"`
	Type        string     `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Entity      string     `json:"entity,omitempty"` // "file" | "module"
	Group       string     `json:"group,omitempty"`
	Importance  Number     `json:"importance,omitzero"`
	LOC         Number     `json:"loc,omitzero"`
	Exports     StringList `json:"exports,omitempty"`
	Metrics     *Metrics   `json:"metrics,omitempty"`

	// Module-level fields, only set when Entity is "module".
	ModuleKey     string     `json:"module_key,omitempty"`
	MemberCount   Number     `json:"member_count,omitzero"`
	LOCTotal      Number     `json:"loc_total,omitzero"`
	DominantTypes StringList `json:"dominant_types,omitempty"`
	TopFiles      StringList `json:"top_files,omitempty"`
	InternalEdges Number     `json:"internal_edges,omitzero"`
	ExternalEdges Number     `json:"external_edges,omitzero"`
	Density       Number     `json:"density,omitzero"`
}

// Metrics carries server-computed structural metrics for a node.
type Metrics struct {
	InDegree   Number `json:"in_degree"`
	OutDegree  Number `json:"out_degree"`
	Degree     Number `json:"degree"`
	Centrality Number `json:"centrality"`
}

// EdgeData is a graph edge as the backend sends it.
type EdgeData struct {
	Source          string `json:"source"`
	Target          string `json:"target"`
	Label           string `json:"label,omitempty"`
	Type            string `json:"type,omitempty"`
	Relation        string `json:"relation,omitempty"`
	Weight          Number `json:"weight,omitzero"`
	Confidence      Number `json:"confidence,omitzero"`
	Rank            Number `json:"rank,omitzero"`
	AggregatedCount Number `json:"aggregated_count,omitzero"`
}

// Meta describes how the graph was produced.
type Meta struct {
	GeneratedAt      string          `json:"generated_at,omitempty"`
	Source           string          `json:"source,omitempty"` // deterministic | hybrid
	Truncated        bool            `json:"truncated,omitempty"`
	Stats            *Stats          `json:"stats,omitempty"`
	View             string          `json:"view,omitempty"`
	Scope            string          `json:"scope,omitempty"`
	RecommendedEntry string          `json:"recommended_entry,omitempty"` // file | module
	EntryReason      string          `json:"entry_reason,omitempty"`
	RawStats         *Stats          `json:"raw_stats,omitempty"`
	CrossModuleRatio Number          `json:"cross_module_ratio,omitzero"`
	InternalSummary  Number          `json:"internal_edges_summarized,omitzero"`
	EdgeBudget       json.RawMessage `json:"edge_budget,omitempty"`
}

// Stats are the server-side counts reported in Meta.
type Stats struct {
	Nodes    Number `json:"nodes"`
	Edges    Number `json:"edges"`
	Clusters Number `json:"clusters"`
	Density  Number `json:"density"`
}

// StringList decodes a JSON array of strings, a single string, or null. Non-string
// elements are skipped.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = nil
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		*l = StringList{v}
	case []any:
		out := make(StringList, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*l = out
	}
	return nil
}

// Number is a lenient JSON number: it accepts numbers, numeric strings and null.
// Anything unparseable decodes to zero instead of failing the whole payload.
type Number struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			n.Value, n.Set = v, true
		}
		return nil
	}
	if v, err := strconv.ParseFloat(string(data), 64); err == nil {
		n.Value, n.Set = v, true
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// IsZero lets encoding/json's omitzero drop unset numbers.
func (n Number) IsZero() bool { return !n.Set }

// Int returns the value truncated to int, or def when unset.
func (n Number) Int(def int) int {
	if !n.Set {
		return def
	}
	return int(n.Value)
}

// Float returns the value, or def when unset.
func (n Number) Float(def float64) float64 {
	if !n.Set {
		return def
	}
	return n.Value
}

// N builds a set Number, mostly for tests and fixtures.
func N(v float64) Number { return Number{Value: v, Set: true} }

// DecodePayload parses a graph payload. Only malformed JSON is an error. A field
// holding the wrong JSON kind is left at its zero value and the rest of the
// payload is kept, so adaptation can fall back to defaults.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &p, nil
		}
		return nil, fmt.Errorf("decoding graph payload: %w", err)
	}
	return &p, nil
}

// IsEmpty returns true if the payload has no nodes.
func (p *Payload) IsEmpty() bool {
	return p == nil || len(p.Nodes) == 0
}
