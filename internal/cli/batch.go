package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lineage/internal/tracker"
	"github.com/ppiankov/lineage/internal/worker"
)

var (
	batchTest    bool
	batchTimeout time.Duration
	batchPrefer  []string
	noTracker    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run the date rank passes over a file of items",
	Long: `Batch reads item ids from a file (one per line, #-comments allowed)
and runs the vital-date rank maintenance passes over each:
- Items are processed one at a time; edits against the live site are
  never issued concurrently
- The tracker file records which items are done or refused, so an
  interrupted run resumes where it stopped
- Transient failures (server lag, timeouts) stay unrecorded and are
  retried on the next run

Example:
  lineage batch painters.txt
  lineage batch painters.txt --prefer ecartico --test
  lineage batch painters.txt --no-tracker`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().BoolVar(&batchTest, "test", false, "print would-be edits instead of sending them")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
	batchCmd.Flags().StringSliceVar(&batchPrefer, "prefer", nil,
		"source databases in priority order (ecartico, genealogics, wikitree)")
	batchCmd.Flags().BoolVar(&noTracker, "no-tracker", false, "process every item, record nothing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	priority, err := databasePriority(batchPrefer)
	if err != nil {
		return err
	}

	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	var trk tracker.Tracker
	if !noTracker {
		ft, err := tracker.NewFileTracker(cfg.Tracker.Path)
		if err != nil {
			return fmt.Errorf("open tracker: %w", err)
		}
		trk = ft
	}

	runner := worker.NewRunner(trk, func(ctx context.Context, qid string) (string, error) {
		return checkItemDates(ctx, session, qid, priority, batchTest, cfg.Output.Verbose)
	}, cfg.Output.Verbose, os.Stderr)

	stats, err := runner.RunFile(ctx, args[0])
	fmt.Fprintf(os.Stderr, "done %d, skipped %d, failed %d, transient %d\n",
		stats.Done, stats.Skipped, stats.Failed, stats.Transient)
	return err
}
