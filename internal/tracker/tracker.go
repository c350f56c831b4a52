// Package tracker is the idempotency ledger: which source records were
// already reconciled and which failed permanently, so reruns skip both.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Tracker records per-record processing outcomes.
type Tracker interface {
	IsDone(id string) bool
	IsError(id string) bool
	MarkDone(id, summary string) error
	MarkError(id, msg string) error
}

type doneEntry struct {
	When    string `json:"when"`
	Summary string `json:"summary,omitempty"`
}

type fileState struct {
	Done   map[string]doneEntry `json:"done"`
	Errors map[string]string    `json:"errors"`
}

// FileTracker persists the ledger as one JSON file, rewritten atomically on
// every mark.
type FileTracker struct {
	path  string
	mu    sync.Mutex
	state fileState
}

// NewFileTracker loads (or initializes) the ledger at path.
func NewFileTracker(path string) (*FileTracker, error) {
	t := &FileTracker{
		path: path,
		state: fileState{
			Done:   map[string]doneEntry{},
			Errors: map[string]string{},
		},
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracker: %w", err)
	}
	if err := json.Unmarshal(data, &t.state); err != nil {
		return nil, fmt.Errorf("parse tracker: %w", err)
	}
	if t.state.Done == nil {
		t.state.Done = map[string]doneEntry{}
	}
	if t.state.Errors == nil {
		t.state.Errors = map[string]string{}
	}
	return t, nil
}

// IsDone reports whether the record was processed successfully before.
func (t *FileTracker) IsDone(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.state.Done[id]
	return ok
}

// IsError reports whether the record failed permanently before.
func (t *FileTracker) IsError(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.state.Errors[id]
	return ok
}

// MarkDone records a successful run and the edit summary it produced; a
// previous error for the id is cleared.
func (t *FileTracker) MarkDone(id, summary string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Done[id] = doneEntry{
		When:    time.Now().UTC().Format(time.RFC3339),
		Summary: summary,
	}
	delete(t.state.Errors, id)
	return t.save()
}

// MarkError records a permanent failure.
func (t *FileTracker) MarkError(id, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Errors[id] = msg
	return t.save()
}

func (t *FileTracker) save() error {
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracker: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("create tracker dir: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write tracker: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace tracker: %w", err)
	}
	return nil
}
