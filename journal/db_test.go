package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"extsock/bridge"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	var name string
	err = j.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", "bridge_calls").Scan(&name)
	if err != nil {
		t.Fatalf("bridge_calls was not created: %v", err)
	}
	if name != "bridge_calls" {
		t.Fatalf("expected bridge_calls, got %s", name)
	}

	// Reopening an existing database must not fail.
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close()
}

func TestRecordAndList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	recs := []bridge.CallRecord{
		{CallID: "c1", Method: "resource.navigator.userAgent", PeerID: "p1", Text: "X", Duration: 12 * time.Millisecond, At: at},
		{CallID: "c2", Method: "tool.alert", PeerID: "p1", IsError: true, Code: -32601, Text: "not a function", At: at.Add(time.Second)},
		{Method: "tool.alert", IsError: true, Code: -32003, Text: "no extension peer is connected"},
	}
	for _, rec := range recs {
		if err := j.RecordCall(ctx, rec); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}

	entries, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Code != -32003 || entries[0].CallID != "" || entries[0].CreatedAt == "" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	oldest := entries[2]
	if oldest.CallID != "c1" || oldest.Text != "X" || oldest.DurationMS != 12 || oldest.IsError {
		t.Fatalf("unexpected oldest entry: %+v", oldest)
	}
	if oldest.CreatedAt != "2025-01-02 03:04:05" {
		t.Fatalf("unexpected created_at %q", oldest.CreatedAt)
	}

	limited, err := j.List(ctx, 1)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != entries[0].ID {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := j.RecordCall(ctx, bridge.CallRecord{Method: "tool.alert"}); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}

	n, err := j.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pruned rows, got %d", n)
	}
	entries, err := j.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 5 || entries[1].ID != 4 {
		t.Fatalf("unexpected remaining entries: %+v", entries)
	}

	if _, err := j.Prune(ctx, -1); err == nil {
		t.Fatal("expected error for negative keep")
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.RecordCall(context.Background(), bridge.CallRecord{}); err == nil {
		t.Fatal("expected error from nil journal")
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close on nil journal: %v", err)
	}
}
