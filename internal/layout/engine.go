// Package layout positions graph nodes. An Engine picks a strategy per mode,
// caches results by graph signature and always returns a position for every node.
package layout

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codebaseqa/cqa/internal/graph"
)

// Handle is the side of a node box an edge attaches to.
type Handle string

const (
	HandleLeft   Handle = "left"
	HandleRight  Handle = "right"
	HandleTop    Handle = "top"
	HandleBottom Handle = "bottom"
)

// LaidOutNode is a node with its top-left position and box.
type LaidOutNode struct {
	graph.Node
	Position     Position `json:"position"`
	Size         Size     `json:"size"`
	TargetHandle Handle   `json:"target_handle"`
	SourceHandle Handle   `json:"source_handle"`
}

// Center returns the middle of the node box.
func (n LaidOutNode) Center() Position {
	return Position{X: n.Position.X + n.Size.W/2, Y: n.Position.Y + n.Size.H/2}
}

// Result is the outcome of one layout request.
type Result struct {
	Nodes     []LaidOutNode `json:"nodes"`
	Mode      Mode          `json:"mode"`
	LOD       LOD           `json:"lod"`
	Spacing   Spacing       `json:"spacing"`
	Strategy  string        `json:"strategy"`
	FromCache bool          `json:"from_cache"`
	Key       string        `json:"-"`
}

// Engine computes and caches layouts.
type Engine struct {
	cache    *Cache
	primary  Strategy
	fallback Strategy
	radial   Strategy
	timeout  time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrimary sets the horizontal-mode primary strategy.
func WithPrimary(s Strategy) Option {
	return func(e *Engine) { e.primary = s }
}

// WithFallback sets the strategy used when the primary fails. It also serves
// vertical mode.
func WithFallback(s Strategy) Option {
	return func(e *Engine) { e.fallback = s }
}

// WithRadial sets the radial-mode strategy.
func WithRadial(s Strategy) Option {
	return func(e *Engine) { e.radial = s }
}

// WithTimeout sets how long the primary strategy is waited on.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine backed by cache. Without WithPrimary the graphviz
// strategy is used when available.
func NewEngine(cache *Cache, opts ...Option) *Engine {
	e := &Engine{
		cache:   cache,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = NewCache(DefaultCacheSize)
	}
	if e.fallback == nil {
		e.fallback = NewLayered()
	}
	if e.radial == nil {
		e.radial = NewRadial()
	}
	if e.primary == nil {
		e.primary = NewStrategy(context.Background(), KindGraphviz, e.logger)
	}
	return e
}

// Cache returns the engine's cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Key returns the cache key for a graph in a mode.
func Key(nodes []graph.Node, edges []graph.Edge, mode Mode) string {
	sig := Signature(nodes, edges)
	if mode == "" || mode == ModeHorizontal {
		return sig
	}
	return string(mode) + "|" + sig
}

// Compute lays out the graph, reusing cached positions when the same structure
// was laid out before in this mode.
func (e *Engine) Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, mode Mode) (*Result, error) {
	return e.compute(ctx, nodes, edges, mode, false)
}

// ComputeFresh ignores any cached positions, recomputes, and stores the new result.
func (e *Engine) ComputeFresh(ctx context.Context, nodes []graph.Node, edges []graph.Edge, mode Mode) (*Result, error) {
	return e.compute(ctx, nodes, edges, mode, true)
}

type computed struct {
	centers   map[string]Position
	strategy  string
	fromCache bool
}

func (e *Engine) compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, mode Mode, fresh bool) (*Result, error) {
	if mode == "" {
		mode = ModeHorizontal
	}
	key := Key(nodes, edges, mode)
	dir := LeftRight
	if mode == ModeVertical {
		dir = TopBottom
	}
	params := NewParams(nodes, edges, dir)

	if !fresh {
		if centers, ok := e.cache.Get(key); ok {
			res := apply(nodes, centers, params, mode)
			res.FromCache = true
			res.Strategy = "cache"
			res.Key = key
			return res, nil
		}
	}

	flightKey := key
	if fresh {
		flightKey = "fresh|" + key
	}
	// The flight is shared, so it must outlive whichever caller started it.
	// Each caller still stops waiting when its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(flightKey, func() (any, error) {
		if !fresh {
			// Another flight may have finished since the first lookup.
			if centers, ok := e.cache.Get(key); ok {
				return computed{centers: centers, strategy: "cache", fromCache: true}, nil
			}
		}
		centers, name, err := e.run(flightCtx, nodes, edges, params, mode)
		if err != nil {
			return nil, err
		}
		e.cache.Put(key, centers)
		return computed{centers: centers, strategy: name}, nil
	})

	var (
		v   any
		err error
	)
	select {
	case r := <-ch:
		v, err = r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Both strategies failed; every node still gets a position.
		e.logger.Warn("layout failed, placing nodes at origin", "mode", mode, "nodes", len(nodes), "error", err)
		res := apply(nodes, nil, params, mode)
		res.Strategy = "none"
		res.Key = key
		return res, nil
	}

	c := v.(computed)
	res := apply(nodes, c.centers, params, mode)
	res.Strategy = c.strategy
	res.FromCache = c.fromCache
	res.Key = key
	return res, nil
}

func (e *Engine) run(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params, mode Mode) (map[string]Position, string, error) {
	start := time.Now()
	var (
		centers map[string]Position
		name    string
		err     error
	)
	switch mode {
	case ModeVertical:
		chain := &Chain{Primary: e.fallback, Fallback: NewLayered(), Timeout: e.timeout, Logger: e.logger}
		centers, name, err = chain.Run(ctx, nodes, edges, p)
	case ModeRadial:
		chain := &Chain{Primary: e.radial, Fallback: NewLayered(), Timeout: e.timeout, Logger: e.logger}
		centers, name, err = chain.Run(ctx, nodes, edges, p)
	default:
		chain := &Chain{Primary: e.primary, Fallback: e.fallback, Timeout: e.timeout, Logger: e.logger}
		centers, name, err = chain.Run(ctx, nodes, edges, p)
	}
	if err == nil {
		e.logger.Debug("layout computed", "mode", mode, "strategy", name, "nodes", len(nodes), "edges", len(edges), "elapsed", time.Since(start))
	}
	return centers, name, err
}

// apply converts centers to top-left positions. Nodes without a center are
// placed at the origin.
func apply(nodes []graph.Node, centers map[string]Position, p Params, mode Mode) *Result {
	lod := LODFor(len(nodes))
	target, source := HandleLeft, HandleRight
	if mode == ModeVertical {
		target, source = HandleTop, HandleBottom
	}

	out := make([]LaidOutNode, 0, len(nodes))
	for _, n := range nodes {
		size := p.sizeOf(n.ID)
		pos := Position{}
		if c, ok := centers[n.ID]; ok && finite(c) {
			pos = Position{X: c.X - size.W/2, Y: c.Y - size.H/2}
		}
		out = append(out, LaidOutNode{
			Node:         n,
			Position:     pos,
			Size:         size,
			TargetHandle: target,
			SourceHandle: source,
		})
	}
	return &Result{Nodes: out, Mode: mode, LOD: lod, Spacing: p.Spacing}
}

func finite(p Position) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
