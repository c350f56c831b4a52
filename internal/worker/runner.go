package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/tracker"
)

// ProcessFunc reconciles one item and returns the edit summary it submitted,
// empty when nothing changed. It is called at most once per item per run.
type ProcessFunc func(ctx context.Context, qid string) (string, error)

// Runner drives a batch of items through a ProcessFunc one at a time. Edits
// against a shared wiki must stay strictly sequential, so there is no pool
// here: ordering within one item (remove old claim, then add the new one)
// and across items (a child edit after its parent) both matter.
type Runner struct {
	tracker tracker.Tracker
	process ProcessFunc
	verbose bool
	out     io.Writer
}

// RunStats counts per-item outcomes of one batch run.
type RunStats struct {
	Done      int
	Skipped   int
	Failed    int
	Transient int
}

// NewRunner creates a runner. The tracker may be nil, in which case every
// item is processed and nothing is recorded.
func NewRunner(trk tracker.Tracker, process ProcessFunc, verbose bool, out io.Writer) *Runner {
	if out == nil {
		out = os.Stderr
	}
	return &Runner{
		tracker: trk,
		process: process,
		verbose: verbose,
		out:     out,
	}
}

// Run processes ids in order. Items already done or failed in an earlier run
// are skipped. An item error classifies the item, not the batch: transient
// errors leave the item unmarked for a retry on the next run, any other error
// marks it failed, and in both cases the runner moves on. Only a cancelled
// context aborts the batch.
func (r *Runner) Run(ctx context.Context, ids []string) (RunStats, error) {
	var stats RunStats

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if r.tracker != nil && (r.tracker.IsDone(id) || r.tracker.IsError(id)) {
			stats.Skipped++
			continue
		}

		summary, err := r.process(ctx, id)
		switch {
		case err == nil:
			stats.Done++
			if r.tracker != nil {
				if terr := r.tracker.MarkDone(id, summary); terr != nil {
					return stats, fmt.Errorf("record %s as done: %w", id, terr)
				}
			}
		case ctx.Err() != nil:
			return stats, ctx.Err()
		case model.IsTransient(err):
			// Not recorded: the next run should try again.
			stats.Transient++
			r.logf("%s: transient: %v", id, err)
		default:
			stats.Failed++
			r.logf("%s: %v", id, err)
			if r.tracker != nil {
				if terr := r.tracker.MarkError(id, err.Error()); terr != nil {
					return stats, fmt.Errorf("record %s as failed: %w", id, terr)
				}
			}
		}
	}

	return stats, nil
}

// RunFile reads item ids from a file and processes them.
func (r *Runner) RunFile(ctx context.Context, path string) (RunStats, error) {
	ids, err := ReadIDsFromFile(path)
	if err != nil {
		return RunStats{}, fmt.Errorf("read ids: %w", err)
	}
	return r.Run(ctx, ids)
}

func (r *Runner) logf(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, format+"\n", args...)
	}
}

// ReadIDsFromFile reads item ids from a file, one per line. Blank lines and
// #-comments are skipped and duplicates are dropped.
func ReadIDsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
