package api

import (
	"context"

	"github.com/codebaseqa/cqa/internal/graph"
)

// GraphFetcher binds a repository and query to the client so a view controller
// can fetch without knowing about HTTP.
type GraphFetcher struct {
	client *Client
	repoID string
	query  GraphQuery
}

// NewFetcher returns a fetcher for one repository graph.
func NewFetcher(c *Client, repoID string, q GraphQuery) *GraphFetcher {
	return &GraphFetcher{client: c, repoID: repoID, query: q}
}

// Fetch implements view.Fetcher.
func (f *GraphFetcher) Fetch(ctx context.Context) (*graph.Payload, error) {
	return f.client.GetGraph(ctx, f.repoID, f.query)
}

// RepoID returns the bound repository id.
func (f *GraphFetcher) RepoID() string { return f.repoID }

// QueryKey returns the canonical key of the bound query.
func (f *GraphFetcher) QueryKey() string { return QueryKey(f.query) }
