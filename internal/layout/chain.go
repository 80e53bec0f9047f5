package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codebaseqa/cqa/internal/graph"
)

// DefaultTimeout caps how long the primary strategy is waited on.
const DefaultTimeout = 1500 * time.Millisecond

// ErrTimeout is returned by Chain.Run's primary attempt when it does not settle in time.
var ErrTimeout = errors.New("layout timed out")

// Chain runs Primary with a timeout and uses Fallback when the primary fails,
// panics or is too slow. A primary that finishes after the timeout has its
// result dropped.
type Chain struct {
	Primary  Strategy
	Fallback Strategy
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Name implements Strategy.
func (c *Chain) Name() string {
	return c.Primary.Name() + "+" + c.Fallback.Name()
}

// Compute implements Strategy.
func (c *Chain) Compute(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error) {
	pos, _, err := c.Run(ctx, nodes, edges, p)
	return pos, err
}

// Run is Compute that also reports which strategy produced the positions.
func (c *Chain) Run(ctx context.Context, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, string, error) {
	pos, err := c.attempt(ctx, c.Primary, nodes, edges, p)
	if err == nil {
		return pos, c.Primary.Name(), nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	c.logger().Warn("primary layout failed, using fallback",
		"primary", c.Primary.Name(),
		"fallback", c.Fallback.Name(),
		"nodes", len(nodes),
		"error", err)

	pos, err = safeCompute(ctx, c.Fallback, nodes, edges, p)
	if err != nil {
		return nil, "", fmt.Errorf("fallback layout %s: %w", c.Fallback.Name(), err)
	}
	return pos, c.Fallback.Name(), nil
}

type outcome struct {
	pos map[string]Position
	err error
}

// attempt races s against the timeout. The first to settle wins.
func (c *Chain) attempt(ctx context.Context, s Strategy, nodes []graph.Node, edges []graph.Edge, p Params) (map[string]Position, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so a late sender never blocks after we stop listening.
	done := make(chan outcome, 1)
	go func() {
		pos, err := safeCompute(runCtx, s, nodes, edges, p)
		done <- outcome{pos, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.pos, out.err
	case <-timer.C:
		return nil, fmt.Errorf("%s after %s: %w", s.Name(), timeout, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Chain) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// safeCompute converts a panicking strategy into an error.
func safeCompute(ctx context.Context, s Strategy, nodes []graph.Node, edges []graph.Edge, p Params) (pos map[string]Position, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.Name(), r)
		}
	}()
	return s.Compute(ctx, nodes, edges, p)
}
