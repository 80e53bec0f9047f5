package layout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebaseqa/cqa/internal/graph"
)

// spyStrategy counts calls and delegates to a grid placement.
type spyStrategy struct {
	name  string
	calls atomic.Int32
	fail  error
	panic bool
	delay time.Duration
}

func (s *spyStrategy) Name() string { return s.name }

func (s *spyStrategy) Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panic {
		panic("boom")
	}
	if s.fail != nil {
		return nil, s.fail
	}
	out := make(map[string]Position, len(nodes))
	for i, n := range nodes {
		out[n.ID] = Position{X: float64(i) * 300, Y: 100}
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(primary, fallback Strategy, timeout time.Duration) *Engine {
	return NewEngine(NewCache(4),
		WithPrimary(primary),
		WithFallback(fallback),
		WithTimeout(timeout),
		WithLogger(quietLogger()))
}

func TestEngine_CacheHitSkipsStrategies(t *testing.T) {
	primary := &spyStrategy{name: "primary"}
	fallback := &spyStrategy{name: "fallback"}
	e := newTestEngine(primary, fallback, time.Second)
	nodes, edges := sampleGraph()
	ctx := context.Background()

	first, err := e.Compute(ctx, nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if first.FromCache || first.Strategy != "primary" {
		t.Errorf("first result = fromCache %v strategy %q", first.FromCache, first.Strategy)
	}

	// Same structure in a different order.
	rev := append([]graph.Node(nil), nodes...)
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	second, err := e.Compute(ctx, rev, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache {
		t.Error("second compute should be a cache hit")
	}
	if got := primary.calls.Load(); got != 1 {
		t.Errorf("primary called %d times, want 1", got)
	}
	if got := fallback.calls.Load(); got != 0 {
		t.Errorf("fallback called %d times, want 0", got)
	}

	pos := positionsByID(first)
	for _, n := range second.Nodes {
		if pos[n.ID] != n.Position {
			t.Errorf("%s: position %v, want %v", n.ID, n.Position, pos[n.ID])
		}
	}
}

func TestEngine_AppliesCentersAsTopLeft(t *testing.T) {
	e := newTestEngine(&spyStrategy{name: "primary"}, NewLayered(), time.Second)
	nodes, edges := sampleGraph()

	res, err := e.Compute(context.Background(), nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	centers, ok := e.Cache().Get(res.Key)
	if !ok {
		t.Fatal("result not cached")
	}
	for _, n := range res.Nodes {
		c := centers[n.ID]
		if got := n.Center(); got != c {
			t.Errorf("%s: center %v, cached %v", n.ID, got, c)
		}
		if n.TargetHandle != HandleLeft || n.SourceHandle != HandleRight {
			t.Errorf("%s: handles %s/%s", n.ID, n.TargetHandle, n.SourceHandle)
		}
	}
}

func TestEngine_FallbackOnError(t *testing.T) {
	primary := &spyStrategy{name: "primary", fail: errors.New("layout engine exploded")}
	e := newTestEngine(primary, NewLayered(), time.Second)
	assertFallback(t, e)
}

func TestEngine_FallbackOnPanic(t *testing.T) {
	primary := &spyStrategy{name: "primary", panic: true}
	e := newTestEngine(primary, NewLayered(), time.Second)
	assertFallback(t, e)
}

func TestEngine_FallbackOnTimeout(t *testing.T) {
	primary := &spyStrategy{name: "primary", delay: 300 * time.Millisecond}
	e := newTestEngine(primary, NewLayered(), 20*time.Millisecond)

	start := time.Now()
	assertFallback(t, e)
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("engine waited %s for a timed-out primary", elapsed)
	}
}

func TestEngine_LatePrimaryResultDiscarded(t *testing.T) {
	primary := &spyStrategy{name: "primary", delay: 150 * time.Millisecond}
	e := newTestEngine(primary, NewLayered(), 20*time.Millisecond)
	nodes, edges := sampleGraph()
	ctx := context.Background()

	first, err := e.Compute(ctx, nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if first.Strategy != "layered" {
		t.Fatalf("strategy = %q, want layered", first.Strategy)
	}
	fallbackCenters := make(map[string]Position, len(first.Nodes))
	for _, n := range first.Nodes {
		fallbackCenters[n.ID] = n.Center()
	}

	// Let the slow primary finish.
	time.Sleep(250 * time.Millisecond)
	if got := primary.calls.Load(); got != 1 {
		t.Fatalf("primary called %d times, want 1", got)
	}

	cached, ok := e.Cache().Get(first.Key)
	if !ok {
		t.Fatal("fallback result not cached")
	}
	for id, want := range fallbackCenters {
		if cached[id] != want {
			t.Errorf("cached %s = %v, want fallback center %v", id, cached[id], want)
		}
	}

	again, err := e.Compute(ctx, nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if !again.FromCache {
		t.Error("second compute should reuse the fallback layout")
	}
	for _, n := range again.Nodes {
		if n.Center() != fallbackCenters[n.ID] {
			t.Errorf("%s moved to %v after the primary settled, want %v", n.ID, n.Center(), fallbackCenters[n.ID])
		}
	}
}

func TestEngine_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	primary := &spyStrategy{name: "primary", delay: 200 * time.Millisecond}
	e := newTestEngine(primary, NewLayered(), time.Second)
	nodes, edges := sampleGraph()

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := e.Compute(leaderCtx, nodes, edges, ModeHorizontal)
		leaderErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	waiter := make(chan *Result, 1)
	go func() {
		res, err := e.Compute(context.Background(), nodes, edges, ModeHorizontal)
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
		waiter <- res
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}
	res := <-waiter
	if res == nil {
		t.Fatal("waiter got no result")
	}
	if res.Strategy != "primary" {
		t.Errorf("waiter strategy = %q, want primary", res.Strategy)
	}
	seen := make(map[Position]string)
	for _, n := range res.Nodes {
		if prev, dup := seen[n.Position]; dup {
			t.Errorf("%s and %s share position %v", prev, n.ID, n.Position)
		}
		seen[n.Position] = n.ID
	}
	if got := primary.calls.Load(); got != 1 {
		t.Errorf("primary called %d times, want 1", got)
	}
}

func assertFallback(t *testing.T, e *Engine) {
	t.Helper()
	nodes, edges := sampleGraph()
	res, err := e.Compute(context.Background(), nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Strategy != "layered" {
		t.Errorf("strategy = %q, want layered", res.Strategy)
	}
	if len(res.Nodes) != len(nodes) {
		t.Fatalf("got %d nodes, want %d", len(res.Nodes), len(nodes))
	}
	seen := make(map[Position]string)
	for _, n := range res.Nodes {
		if prev, dup := seen[n.Position]; dup {
			t.Errorf("%s and %s share position %v", prev, n.ID, n.Position)
		}
		seen[n.Position] = n.ID
	}
}

func TestEngine_BothFailPlacesAtOrigin(t *testing.T) {
	boom := errors.New("boom")
	e := newTestEngine(&spyStrategy{name: "p", fail: boom}, &spyStrategy{name: "f", fail: boom}, time.Second)
	nodes, edges := sampleGraph()

	res, err := e.Compute(context.Background(), nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatalf("Compute should absorb layout failure, got %v", err)
	}
	if len(res.Nodes) != len(nodes) {
		t.Fatalf("dropped nodes: %d of %d", len(res.Nodes), len(nodes))
	}
	for _, n := range res.Nodes {
		if n.Position != (Position{}) {
			t.Errorf("%s at %v, want origin", n.ID, n.Position)
		}
	}
}

func TestEngine_PartialPositionsDefaultToOrigin(t *testing.T) {
	partial := &partialStrategy{}
	e := newTestEngine(partial, NewLayered(), time.Second)
	nodes, edges := sampleGraph()

	res, err := e.Compute(context.Background(), nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Nodes) != len(nodes) {
		t.Fatalf("got %d nodes, want %d", len(res.Nodes), len(nodes))
	}
	for _, n := range res.Nodes[1:] {
		if n.Position != (Position{}) {
			t.Errorf("%s should default to origin, got %v", n.ID, n.Position)
		}
	}
}

type partialStrategy struct{}

func (partialStrategy) Name() string { return "partial" }

func (partialStrategy) Compute(_ context.Context, nodes []graph.Node, _ []graph.Edge, _ Params) (map[string]Position, error) {
	return map[string]Position{nodes[0].ID: {X: 500, Y: 500}}, nil
}

func TestEngine_ComputeFreshBypassesCache(t *testing.T) {
	primary := &spyStrategy{name: "primary"}
	e := newTestEngine(primary, NewLayered(), time.Second)
	nodes, edges := sampleGraph()
	ctx := context.Background()

	if _, err := e.Compute(ctx, nodes, edges, ModeHorizontal); err != nil {
		t.Fatal(err)
	}
	res, err := e.ComputeFresh(ctx, nodes, edges, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("ComputeFresh reported a cache hit")
	}
	if got := primary.calls.Load(); got != 2 {
		t.Errorf("primary called %d times, want 2", got)
	}
	if e.Cache().Len() != 1 {
		t.Errorf("cache has %d entries, want 1", e.Cache().Len())
	}
}

func TestEngine_ModesUseSeparateEntries(t *testing.T) {
	primary := &spyStrategy{name: "primary"}
	e := newTestEngine(primary, NewLayered(), time.Second)
	nodes, edges := sampleGraph()
	ctx := context.Background()

	for _, mode := range Modes {
		res, err := e.Compute(ctx, nodes, edges, mode)
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if res.Mode != mode || res.FromCache {
			t.Errorf("%s: mode %s fromCache %v", mode, res.Mode, res.FromCache)
		}
	}
	if e.Cache().Len() != 3 {
		t.Errorf("cache has %d entries, want 3", e.Cache().Len())
	}

	vert, _ := e.Compute(ctx, nodes, edges, ModeVertical)
	if !vert.FromCache {
		t.Error("vertical relayout should hit the cache")
	}
	if vert.Nodes[0].TargetHandle != HandleTop {
		t.Errorf("vertical target handle = %s", vert.Nodes[0].TargetHandle)
	}
	if got := primary.calls.Load(); got != 1 {
		t.Errorf("primary called %d times, want 1 (horizontal only)", got)
	}
}

func TestEngine_ConcurrentSameGraph(t *testing.T) {
	primary := &spyStrategy{name: "primary", delay: 50 * time.Millisecond}
	e := newTestEngine(primary, NewLayered(), time.Second)
	nodes, edges := sampleGraph()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Compute(context.Background(), nodes, edges, ModeHorizontal)
			if err != nil || len(res.Nodes) != len(nodes) {
				t.Errorf("Compute: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := primary.calls.Load(); got > 2 {
		t.Errorf("primary called %d times for one graph", got)
	}
}

func TestEngine_Empty(t *testing.T) {
	e := newTestEngine(&spyStrategy{name: "primary"}, NewLayered(), time.Second)
	res, err := e.Compute(context.Background(), nil, nil, ModeHorizontal)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Nodes) != 0 {
		t.Errorf("got %d nodes", len(res.Nodes))
	}
}

func positionsByID(r *Result) map[string]Position {
	out := make(map[string]Position, len(r.Nodes))
	for _, n := range r.Nodes {
		out[n.ID] = n.Position
	}
	return out
}
