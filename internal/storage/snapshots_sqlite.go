package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codebaseqa/cqa/internal/graph"
)

// Snapshot is one stored graph fetch. Payload is nil in listings.
type Snapshot struct {
	ID        int64          `json:"id"`
	RepoID    string         `json:"repo_id"`
	QueryKey  string         `json:"query_key"`
	FetchedAt time.Time      `json:"fetched_at"`
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	Truncated bool           `json:"truncated"`
	Payload   *graph.Payload `json:"payload,omitempty"`
}

const selectSnapshotFields = `id, repo_id, query_key, fetched_at, node_count, edge_count, truncated`

// SaveSnapshot stores the payload fetched for repoID under queryKey.
func (d *DB) SaveSnapshot(ctx context.Context, repoID, queryKey string, p *graph.Payload) error {
	_, err := d.InsertSnapshot(ctx, Snapshot{
		RepoID:    repoID,
		QueryKey:  queryKey,
		FetchedAt: time.Now(),
		Payload:   p,
	})
	return err
}

// InsertSnapshot stores s and returns its id. Counts are derived from the payload.
func (d *DB) InsertSnapshot(ctx context.Context, s Snapshot) (int64, error) {
	if s.RepoID == "" {
		return 0, errors.New("snapshot has no repo id")
	}
	p := s.Payload
	if p == nil {
		p = &graph.Payload{}
	}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshaling payload for %s: %w", s.RepoID, err)
	}

	truncated := 0
	if p.Meta != nil && p.Meta.Truncated {
		truncated = 1
	}
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now()
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO graph_snapshots (repo_id, query_key, fetched_at, node_count, edge_count, truncated, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.RepoID, s.QueryKey, s.FetchedAt.UTC().Format(time.RFC3339Nano),
		len(p.Nodes), len(p.Edges), truncated, string(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("inserting snapshot for %s: %w", s.RepoID, err)
	}
	return res.LastInsertId()
}

// LatestSnapshot returns the newest snapshot for repoID and queryKey, with its
// payload. Returns nil, nil if there is none.
func (d *DB) LatestSnapshot(ctx context.Context, repoID, queryKey string) (*Snapshot, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+selectSnapshotFields+`, payload_json
		FROM graph_snapshots
		WHERE repo_id = ? AND query_key = ?
		ORDER BY id DESC
		LIMIT 1
	`, repoID, queryKey)

	return scanSnapshotWithPayload(row)
}

// GetSnapshot returns the snapshot with the given id, with its payload.
// Returns nil, nil if there is none.
func (d *DB) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+selectSnapshotFields+`, payload_json
		FROM graph_snapshots
		WHERE id = ?
	`, id)
	return scanSnapshotWithPayload(row)
}

func scanSnapshotWithPayload(row *sql.Row) (*Snapshot, error) {
	var f snapshotScanFields
	var payloadJSON string
	err := row.Scan(&f.id, &f.repoID, &f.queryKey, &f.fetchedAt, &f.nodeCount, &f.edgeCount, &f.truncated, &payloadJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	s := f.toSnapshot()
	s.Payload, err = graph.DecodePayload([]byte(payloadJSON))
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", s.ID, err)
	}
	return &s, nil
}

// ListSnapshots returns snapshot metadata for repoID, newest first.
func (d *DB) ListSnapshots(ctx context.Context, repoID string) ([]Snapshot, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectSnapshotFields+`
		FROM graph_snapshots
		WHERE repo_id = ?
		ORDER BY id DESC
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var f snapshotScanFields
		if err := rows.Scan(&f.id, &f.repoID, &f.queryKey, &f.fetchedAt, &f.nodeCount, &f.edgeCount, &f.truncated); err != nil {
			return nil, err
		}
		out = append(out, f.toSnapshot())
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the newest keep snapshots of repoID and deletes the rest.
// It returns the number deleted.
func (d *DB) PruneSnapshots(ctx context.Context, repoID string, keep int) (int64, error) {
	keep = max(keep, 0)
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM graph_snapshots
		WHERE repo_id = ? AND id NOT IN (
			SELECT id FROM graph_snapshots WHERE repo_id = ? ORDER BY id DESC LIMIT ?
		)
	`, repoID, repoID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots for %s: %w", repoID, err)
	}
	return res.RowsAffected()
}

// DeleteSnapshots removes every snapshot of repoID.
func (d *DB) DeleteSnapshots(ctx context.Context, repoID string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM graph_snapshots WHERE repo_id = ?`, repoID)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshots for %s: %w", repoID, err)
	}
	return res.RowsAffected()
}

// CountSnapshots returns the number of stored snapshots.
func (d *DB) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

type snapshotScanFields struct {
	id        int64
	repoID    string
	queryKey  string
	fetchedAt string
	nodeCount int
	edgeCount int
	truncated int
}

func (f snapshotScanFields) toSnapshot() Snapshot {
	s := Snapshot{
		ID:        f.id,
		RepoID:    f.repoID,
		QueryKey:  f.queryKey,
		NodeCount: f.nodeCount,
		EdgeCount: f.edgeCount,
		Truncated: f.truncated != 0,
	}
	// Unparseable timestamps are left zero.
	s.FetchedAt, _ = time.Parse(time.RFC3339Nano, f.fetchedAt)
	return s
}
