// Package view holds the interaction state of one graph view: the fetched graph,
// its layout, and the search, type filter and selection applied on top of it.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/codebaseqa/cqa/internal/graph"
	"github.com/codebaseqa/cqa/internal/layout"
	"github.com/codebaseqa/cqa/internal/render"
)

// ErrFetchInFlight is returned by a non-forced Load while another load runs.
var ErrFetchInFlight = errors.New("graph fetch already in flight")

// Fetcher retrieves the graph payload for one repository and query.
type Fetcher interface {
	Fetch(ctx context.Context) (*graph.Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*graph.Payload, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context) (*graph.Payload, error) { return f(ctx) }

// SnapshotStore persists fetched payloads.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, repoID, queryKey string, p *graph.Payload) error
}

// Filter is the client-side visibility state.
type Filter struct {
	Query string `json:"query,omitempty"`
	// ActiveTypes lists visible types; nil means all types are visible.
	ActiveTypes map[graph.FileType]bool `json:"active_types,omitempty"`
	SelectedID  string                  `json:"selected_id,omitempty"`
}

// TypeActive reports whether nodes of type t pass the type filter.
func (f Filter) TypeActive(t graph.FileType) bool {
	return f.ActiveTypes == nil || f.ActiveTypes[t]
}

// Matches reports whether a node passes both the type filter and the search.
func (f Filter) Matches(n graph.Node) bool {
	if !f.TypeActive(n.Type) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Label), q) ||
		strings.Contains(strings.ToLower(n.FilePath), q)
}

// Controller coordinates fetch, adaptation, layout and filtering for one graph.
// All methods are safe for concurrent use.
type Controller struct {
	fetcher   Fetcher
	engine    *layout.Engine
	logger    *slog.Logger
	snapshots SnapshotStore
	repoID    string
	queryKey  string
	title     string

	loadMu sync.Mutex

	mu      sync.RWMutex
	raw     *graph.Adapted
	result  *layout.Result
	fetched bool
	loading bool
	mode    layout.Mode
	filter  Filter
	err     error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSnapshots saves every successfully fetched payload to s.
func WithSnapshots(s SnapshotStore, repoID, queryKey string) Option {
	return func(c *Controller) {
		c.snapshots = s
		c.repoID = repoID
		c.queryKey = queryKey
	}
}

// WithTitle sets the title shown above the graph.
func WithTitle(title string) Option {
	return func(c *Controller) { c.title = title }
}

// WithMode sets the initial layout mode.
func WithMode(m layout.Mode) Option {
	return func(c *Controller) {
		if m != "" {
			c.mode = m
		}
	}
}

// New creates a controller. Nothing is fetched until Load.
func New(fetcher Fetcher, engine *layout.Engine, opts ...Option) *Controller {
	c := &Controller{
		fetcher: fetcher,
		engine:  engine,
		logger:  slog.Default(),
		mode:    layout.ModeHorizontal,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = layout.NewEngine(layout.NewCache(layout.DefaultCacheSize), layout.WithLogger(c.logger))
	}
	return c
}

// Load fetches, adapts and lays out the graph. Without force it does nothing
// once a fetch has succeeded, and returns ErrFetchInFlight while another load
// is running. Forced loads wait for a running load, then refetch and bypass the
// layout cache.
func (c *Controller) Load(ctx context.Context, force bool) error {
	if force {
		c.loadMu.Lock()
	} else if !c.loadMu.TryLock() {
		return ErrFetchInFlight
	}
	defer c.loadMu.Unlock()

	c.mu.Lock()
	if c.fetched && !force {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	mode := c.mode
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	payload, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn("graph fetch failed", "repo", c.repoID, "error", err)
		c.mu.Lock()
		c.raw = nil
		c.result = nil
		c.fetched = false
		c.err = err
		c.mu.Unlock()
		return fmt.Errorf("fetching graph: %w", err)
	}

	if c.snapshots != nil && !payload.IsEmpty() {
		if err := c.snapshots.SaveSnapshot(ctx, c.repoID, c.queryKey, payload); err != nil {
			c.logger.Warn("saving graph snapshot failed", "repo", c.repoID, "error", err)
		}
	}

	adapted := graph.Adapt(payload)
	var res *layout.Result
	if force {
		res, err = c.engine.ComputeFresh(ctx, adapted.Nodes, adapted.Edges, mode)
	} else {
		res, err = c.engine.Compute(ctx, adapted.Nodes, adapted.Edges, mode)
	}
	if err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		return fmt.Errorf("laying out graph: %w", err)
	}

	c.logger.Debug("graph loaded",
		"repo", c.repoID,
		"nodes", len(adapted.Nodes),
		"edges", len(adapted.Edges),
		"strategy", res.Strategy,
		"from_cache", res.FromCache)

	// SetMode may have run while we fetched; publish a layout in the current mode.
	for {
		c.mu.Lock()
		if c.mode == mode {
			break
		}
		mode = c.mode
		c.mu.Unlock()
		if res, err = c.engine.Compute(ctx, adapted.Nodes, adapted.Edges, mode); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return fmt.Errorf("laying out graph: %w", err)
		}
	}
	c.raw = adapted
	c.result = res
	c.fetched = true
	c.err = nil
	if c.filter.SelectedID != "" && !adapted.Has(c.filter.SelectedID) {
		c.filter.SelectedID = ""
	}
	c.mu.Unlock()
	return nil
}

// Regenerate refetches and recomputes the layout, ignoring cached positions.
func (c *Controller) Regenerate(ctx context.Context) error {
	return c.Load(ctx, true)
}

// SetMode re-lays out the already fetched graph in a new mode. It never fetches.
func (c *Controller) SetMode(ctx context.Context, mode layout.Mode) error {
	c.mu.Lock()
	raw := c.raw
	if raw == nil {
		c.mode = mode
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	for {
		res, err := c.engine.Compute(ctx, raw.Nodes, raw.Edges, mode)
		if err != nil {
			return fmt.Errorf("laying out graph: %w", err)
		}

		c.mu.Lock()
		if c.raw == raw || c.raw == nil {
			if c.raw == raw {
				c.result = res
			}
			c.mode = mode
			c.mu.Unlock()
			return nil
		}
		// A load replaced the graph meanwhile; lay the new one out too.
		raw = c.raw
		c.mu.Unlock()
	}
}

// Mode returns the current layout mode.
func (c *Controller) Mode() layout.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Search sets the free-text filter.
func (c *Controller) Search(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Query = q
	c.dropHiddenSelection()
}

// ToggleType flips the visibility of one node type.
func (c *Controller) ToggleType(t graph.FileType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter.ActiveTypes == nil {
		c.filter.ActiveTypes = make(map[graph.FileType]bool, len(graph.AllTypes))
		for _, ft := range graph.AllTypes {
			c.filter.ActiveTypes[ft] = true
		}
	}
	c.filter.ActiveTypes[t] = !c.filter.ActiveTypes[t]
	if c.allTypesActive() {
		c.filter.ActiveTypes = nil
	}
	c.dropHiddenSelection()
}

// SetActiveTypes shows only the given types. An empty list hides every type.
func (c *Controller) SetActiveTypes(types []graph.FileType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.ActiveTypes = make(map[graph.FileType]bool, len(types))
	for _, t := range types {
		c.filter.ActiveTypes[t] = true
	}
	c.dropHiddenSelection()
}

// HideTypes hides the given types and leaves the rest visible.
func (c *Controller) HideTypes(types []graph.FileType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.ActiveTypes = make(map[graph.FileType]bool, len(graph.AllTypes))
	for _, ft := range graph.AllTypes {
		c.filter.ActiveTypes[ft] = true
	}
	for _, t := range types {
		c.filter.ActiveTypes[t] = false
	}
	c.dropHiddenSelection()
}

// ShowAllTypes clears the type filter.
func (c *Controller) ShowAllTypes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.ActiveTypes = nil
}

// Select selects a visible node. It returns false when the id is unknown or
// filtered out.
func (c *Controller) Select(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.raw.Node(id)
	if !ok || !c.filter.Matches(n) {
		return false
	}
	c.filter.SelectedID = id
	return true
}

// ClearSelection deselects the selected node.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.SelectedID = ""
}

// Reset clears search, type filter and selection.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = Filter{}
}

// Filter returns a copy of the current filter.
func (c *Controller) Filter() Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyFilter(c.filter)
}

func (c *Controller) allTypesActive() bool {
	for _, ft := range graph.AllTypes {
		if !c.filter.ActiveTypes[ft] {
			return false
		}
	}
	return true
}

// dropHiddenSelection clears a selection the filter no longer shows.
// Callers hold c.mu.
func (c *Controller) dropHiddenSelection() {
	if c.filter.SelectedID == "" {
		return
	}
	n, ok := c.raw.Node(c.filter.SelectedID)
	if !ok || !c.filter.Matches(n) {
		c.filter.SelectedID = ""
	}
}

func copyFilter(f Filter) Filter {
	out := f
	if f.ActiveTypes != nil {
		out.ActiveTypes = make(map[graph.FileType]bool, len(f.ActiveTypes))
		for k, v := range f.ActiveTypes {
			out.ActiveTypes[k] = v
		}
	}
	return out
}

// View derives the current visible state.
func (c *Controller) View() *View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := &View{
		Title:   c.title,
		RepoID:  c.repoID,
		Filter:  copyFilter(c.filter),
		Mode:    c.mode,
		Fetched: c.fetched,
		Loading: c.loading,
	}
	if c.err != nil {
		v.Error = c.err.Error()
	}
	if c.raw == nil || c.result == nil {
		v.Stats = StatsFor(0, 0)
		return v
	}

	v.Mode = c.result.Mode
	v.LOD = c.result.LOD
	v.Strategy = c.result.Strategy
	v.FromCache = c.result.FromCache
	v.Stats = StatsFor(len(c.raw.Nodes), len(c.raw.Edges))
	v.Caveats = caveats(c.raw)

	visible := make(map[string]bool, len(c.result.Nodes))
	for _, n := range c.result.Nodes {
		ok := c.filter.Matches(n.Node)
		visible[n.ID] = ok
		v.Nodes = append(v.Nodes, render.SceneNode{
			LaidOutNode: n,
			Visible:     ok,
			Matched:     ok && strings.TrimSpace(c.filter.Query) != "",
			Degree:      c.raw.Degree(n.ID),
		})
	}

	sel := c.filter.SelectedID
	for _, e := range c.raw.Edges {
		ok := visible[e.Source] && visible[e.Target]
		v.Edges = append(v.Edges, render.SceneEdge{
			Edge:        e,
			Visible:     ok,
			Highlighted: ok && sel != "" && (e.Source == sel || e.Target == sel),
		})
	}

	if sel != "" && visible[sel] {
		v.Selection = selection(c.raw, sel, visible)
	}
	v.Legend = legend(c.raw, c.filter)
	return v
}

func selection(a *graph.Adapted, id string, visible map[string]bool) *Selection {
	n, _ := a.Node(id)
	s := &Selection{Node: n}
	in, out := a.Neighbors(id)
	for _, e := range in {
		if visible[e.Source] {
			other, _ := a.Node(e.Source)
			s.Incoming = append(s.Incoming, Neighbor{Edge: e, Node: other})
		}
	}
	for _, e := range out {
		if visible[e.Target] {
			other, _ := a.Node(e.Target)
			s.Outgoing = append(s.Outgoing, Neighbor{Edge: e, Node: other})
		}
	}
	return s
}

func legend(a *graph.Adapted, f Filter) []render.LegendEntry {
	counts := make(map[graph.FileType]int)
	for _, n := range a.Nodes {
		counts[n.Type]++
	}
	var out []render.LegendEntry
	for _, t := range a.Types() {
		st := render.NodeStyle(t)
		out = append(out, render.LegendEntry{
			Type:   t,
			Label:  st.Label,
			Color:  st.CSS(),
			Count:  counts[t],
			Active: f.TypeActive(t),
		})
	}
	return out
}

func caveats(a *graph.Adapted) []string {
	if a.Meta == nil {
		return nil
	}
	var out []string
	if a.Meta.Truncated {
		msg := "graph truncated by the server"
		if a.Meta.RawStats != nil && a.Meta.RawStats.Nodes.Set {
			msg = fmt.Sprintf("%s (showing %d of %d files)", msg, len(a.Nodes), a.Meta.RawStats.Nodes.Int(0))
		}
		out = append(out, msg)
	}
	if a.Meta.RecommendedEntry == string(graph.EntityModule) && !hasModules(a) {
		msg := "module view recommended"
		if a.Meta.EntryReason != "" {
			msg += ": " + a.Meta.EntryReason
		}
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

func hasModules(a *graph.Adapted) bool {
	for _, n := range a.Nodes {
		if n.IsModule() {
			return true
		}
	}
	return false
}
