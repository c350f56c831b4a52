package tracker

import (
	"path/filepath"
	"testing"
)

func TestFileTracker_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")

	tr, err := NewFileTracker(path)
	if err != nil {
		t.Fatalf("NewFileTracker: %v", err)
	}
	if tr.IsDone("1234") || tr.IsError("1234") {
		t.Fatal("fresh ledger must be empty")
	}

	if err := tr.MarkDone("1234", "added [[Property:P569]]"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := tr.MarkError("5678", "ambiguous spouse"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}

	// A new instance must see the persisted state.
	tr2, err := NewFileTracker(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !tr2.IsDone("1234") {
		t.Error("done mark lost")
	}
	if !tr2.IsError("5678") {
		t.Error("error mark lost")
	}
	if tr2.IsDone("5678") || tr2.IsError("1234") {
		t.Error("marks crossed")
	}
	if got := tr2.state.Done["1234"].Summary; got != "added [[Property:P569]]" {
		t.Errorf("summary = %q, not persisted", got)
	}
}

func TestFileTracker_DoneClearsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	tr, err := NewFileTracker(path)
	if err != nil {
		t.Fatalf("NewFileTracker: %v", err)
	}
	if err := tr.MarkError("1234", "transient"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}
	if err := tr.MarkDone("1234", "added [[Property:P569]]"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if tr.IsError("1234") {
		t.Error("error mark must clear on done")
	}
	if !tr.IsDone("1234") {
		t.Error("done mark missing")
	}
}

func TestFileTracker_MissingFileIsEmpty(t *testing.T) {
	tr, err := NewFileTracker(filepath.Join(t.TempDir(), "absent", "status.json"))
	if err != nil {
		t.Fatalf("NewFileTracker: %v", err)
	}
	if tr.IsDone("1") {
		t.Error("missing file must read as empty")
	}
	if err := tr.MarkDone("1", ""); err != nil {
		t.Fatalf("MarkDone creates directories: %v", err)
	}
}
