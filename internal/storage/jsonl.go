// Package storage persists fetched dependency graphs in SQLite and moves them
// in and out as JSONL.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines. Graph
// payloads are large, so this is well above the bufio default.
const MaxJSONLLineCapacity = 16 * 1024 * 1024

// ReadSnapshotsJSONL reads snapshots, one per line. A missing file yields none.
func ReadSnapshotsJSONL(path string) ([]Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening snapshots file: %w", err)
	}
	defer f.Close()
	return DecodeSnapshotsJSONL(f)
}

// DecodeSnapshotsJSONL decodes JSONL snapshots from r.
func DecodeSnapshotsJSONL(r io.Reader) ([]Snapshot, error) {
	var out []Snapshot
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var s Snapshot
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if s.RepoID == "" {
			return nil, fmt.Errorf("line %d: snapshot has no repo_id", lineNum)
		}
		out = append(out, s)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	return out, nil
}

// WriteSnapshotsJSONL writes snapshots to w, one JSON object per line.
func WriteSnapshotsJSONL(w io.Writer, snapshots []Snapshot) error {
	enc := json.NewEncoder(w)
	for _, s := range snapshots {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding snapshot %d: %w", s.ID, err)
		}
	}
	return nil
}
