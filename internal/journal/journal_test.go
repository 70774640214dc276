package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "maestro.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()

	events := []Event{
		{Operation: "start", Target: "bot", Outcome: OutcomeOK},
		{Operation: "start", Target: "web", Outcome: OutcomeFailed, Detail: "exited early"},
		{Operation: "backup", Outcome: OutcomeOK, Detail: "backups/x.tar.gz"},
	}
	for _, ev := range events {
		if err := j.Record(ev); err != nil {
			t.Fatalf("Record(%+v): %v", ev, err)
		}
	}

	got, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d", len(got))
	}
	// Newest first.
	if got[0].Operation != "backup" || got[1].Target != "web" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].At.IsZero() || time.Since(got[0].At) > time.Minute {
		t.Fatalf("timestamp not defaulted sensibly: %v", got[0].At)
	}
}

func TestRecentOnEmptyJournal(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()
	got, err := j.Recent(5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	// Fresh working directory: logs/ does not exist yet when the journal is
	// first opened.
	path := filepath.Join(t.TempDir(), "logs", "maestro.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()
	if err := j.Record(Event{Operation: "deploy", Outcome: OutcomeOK}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("journal file missing: %v", err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
