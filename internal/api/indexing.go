package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is how often WaitForIndexing checks the repository.
const DefaultPollInterval = 2 * time.Second

// ErrIndexingFailed is returned by WaitForIndexing when the backend reports a
// failed index.
var ErrIndexingFailed = errors.New("indexing failed")

// WaitForIndexing polls a repository until it is completed or failed. onUpdate,
// if set, sees every polled state. A failed index returns the repository and an
// error wrapping ErrIndexingFailed.
func (c *Client) WaitForIndexing(ctx context.Context, repoID string, interval time.Duration, onUpdate func(*Repo)) (*Repo, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r, err := c.GetRepo(ctx, repoID)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(r)
		}
		switch r.Status {
		case StatusCompleted:
			return r, nil
		case StatusFailed:
			msg := r.IndexingError
			if msg == "" {
				msg = "unknown error"
			}
			return r, fmt.Errorf("%w: %s", ErrIndexingFailed, msg)
		}

		select {
		case <-ctx.Done():
			return r, ctx.Err()
		case <-ticker.C:
		}
	}
}
