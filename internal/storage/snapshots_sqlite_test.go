package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebaseqa/cqa/internal/graph"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "nested", "cqa.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPayload(n int) *graph.Payload {
	p := &graph.Payload{Meta: &graph.Meta{Truncated: n > 2}}
	for i := 0; i < n; i++ {
		p.Nodes = append(p.Nodes, graph.NodeData{ID: "src/f" + string(rune('a'+i)) + ".ts", Importance: graph.N(float64(i + 1))})
	}
	for i := 1; i < n; i++ {
		p.Edges = append(p.Edges, graph.EdgeData{Source: p.Nodes[i-1].ID, Target: p.Nodes[i].ID, Weight: graph.N(2)})
	}
	return p
}

func TestSaveAndLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.SaveSnapshot(ctx, "r1", "", testPayload(2)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := db.SaveSnapshot(ctx, "r1", "", testPayload(3)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := db.SaveSnapshot(ctx, "r1", "granularity=module", testPayload(1)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	s, err := db.LatestSnapshot(ctx, "r1", "")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if s == nil {
		t.Fatal("LatestSnapshot() returned nil")
	}
	if s.NodeCount != 3 || s.EdgeCount != 2 || !s.Truncated {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Payload == nil || len(s.Payload.Nodes) != 3 {
		t.Fatalf("payload not restored: %+v", s.Payload)
	}
	if got := s.Payload.Nodes[2].Importance.Int(0); got != 3 {
		t.Errorf("importance round trip = %d, want 3", got)
	}
	if time.Since(s.FetchedAt) > time.Minute {
		t.Errorf("FetchedAt = %v", s.FetchedAt)
	}

	a := graph.Adapt(s.Payload)
	if len(a.Edges) != 2 || a.Edges[0].Weight != 2 {
		t.Errorf("adapted snapshot = %+v", a.Edges)
	}
}

func TestLatestSnapshot_None(t *testing.T) {
	db := openTestDB(t)
	s, err := db.LatestSnapshot(context.Background(), "nope", "")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if s != nil {
		t.Errorf("LatestSnapshot() = %+v, want nil", s)
	}
}

func TestGetSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertSnapshot(ctx, Snapshot{RepoID: "r1", QueryKey: "granularity=module", Payload: testPayload(3)})
	if err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}

	s, err := db.GetSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if s == nil || s.ID != id || s.QueryKey != "granularity=module" || !s.Truncated {
		t.Fatalf("GetSnapshot() = %+v", s)
	}
	if s.Payload == nil || len(s.Payload.Nodes) != 3 || len(s.Payload.Edges) != 2 {
		t.Errorf("payload = %+v", s.Payload)
	}

	if s, err := db.GetSnapshot(ctx, id+100); err != nil || s != nil {
		t.Errorf("GetSnapshot(missing) = %+v, %v; want nil, nil", s, err)
	}
}

func TestListAndPruneSnapshots(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i := 1; i <= 5; i++ {
		if err := db.SaveSnapshot(ctx, "r1", "", testPayload(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.SaveSnapshot(ctx, "r2", "", testPayload(1)); err != nil {
		t.Fatal(err)
	}

	list, err := db.ListSnapshots(ctx, "r1")
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("ListSnapshots() len = %d, want 5", len(list))
	}
	if list[0].NodeCount != 5 || list[4].NodeCount != 1 {
		t.Errorf("not newest first: %d ... %d", list[0].NodeCount, list[4].NodeCount)
	}
	if list[0].Payload != nil {
		t.Error("listing should not carry payloads")
	}

	n, err := db.PruneSnapshots(ctx, "r1", 2)
	if err != nil {
		t.Fatalf("PruneSnapshots() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PruneSnapshots() deleted %d, want 3", n)
	}

	list, _ = db.ListSnapshots(ctx, "r1")
	if len(list) != 2 || list[0].NodeCount != 5 || list[1].NodeCount != 4 {
		t.Errorf("after prune = %+v", list)
	}
	if total, _ := db.CountSnapshots(ctx); total != 3 {
		t.Errorf("CountSnapshots() = %d, want 3 (other repo untouched)", total)
	}

	if n, _ := db.DeleteSnapshots(ctx, "r1"); n != 2 {
		t.Errorf("DeleteSnapshots() = %d, want 2", n)
	}
}

func TestInsertSnapshot_RequiresRepoID(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.InsertSnapshot(context.Background(), Snapshot{}); err == nil {
		t.Error("expected error for missing repo id")
	}
}

func TestSnapshotsJSONLRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.SaveSnapshot(ctx, "r1", "scope=src", testPayload(3)); err != nil {
		t.Fatal(err)
	}
	s, _ := db.LatestSnapshot(ctx, "r1", "scope=src")

	var buf bytes.Buffer
	if err := WriteSnapshotsJSONL(&buf, []Snapshot{*s}); err != nil {
		t.Fatalf("WriteSnapshotsJSONL() error = %v", err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected one line, got %q", buf.String())
	}

	got, err := DecodeSnapshotsJSONL(&buf)
	if err != nil {
		t.Fatalf("DecodeSnapshotsJSONL() error = %v", err)
	}
	if len(got) != 1 || got[0].QueryKey != "scope=src" || len(got[0].Payload.Nodes) != 3 {
		t.Errorf("decoded = %+v", got)
	}

	other := openTestDB(t)
	if _, err := other.InsertSnapshot(ctx, got[0]); err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}
	back, _ := other.LatestSnapshot(ctx, "r1", "scope=src")
	if back == nil || !back.FetchedAt.Equal(s.FetchedAt) {
		t.Errorf("imported snapshot = %+v", back)
	}
}

func TestDecodeSnapshotsJSONL_Errors(t *testing.T) {
	if _, err := DecodeSnapshotsJSONL(strings.NewReader("{not json}\n")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := DecodeSnapshotsJSONL(strings.NewReader(`{"id":1}` + "\n")); err == nil {
		t.Error("expected missing repo_id error")
	}
	got, err := ReadSnapshotsJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil || got != nil {
		t.Errorf("missing file = %v, %v", got, err)
	}
}
