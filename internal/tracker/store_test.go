package tracker_test

import (
	"testing"

	"github.com/focusloop/focusloop/internal/tracker"
)

func newTestStore(t *testing.T) *tracker.Store {
	t.Helper()
	s, err := tracker.New(tracker.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_MigrationIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := tracker.New(tracker.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s1.CreateRecord(tracker.CreateRecordParams{Content: "survives reopen"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	s1.Close()

	s2, err := tracker.New(tracker.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	recs, err := s2.ListRecords(tracker.ListRecordsOptions{})
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records after reopen, want 1", len(recs))
	}
}

func TestTruncate(t *testing.T) {
	if got := tracker.Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short, 10) = %q", got)
	}
	if got := tracker.Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("Truncate = %q, want abcd...", got)
	}
}
