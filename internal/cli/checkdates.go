package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reconcile"
	"github.com/ppiankov/lineage/internal/reference"
)

var (
	checkTest    bool
	checkTimeout time.Duration
	preferOrder  []string
)

// checkDatesCmd represents the check-dates command
var checkDatesCmd = &cobra.Command{
	Use:   "check-dates <QID>",
	Short: "Recompute preferred ranks on an item's vital dates",
	Long: `Check-dates runs the rank maintenance passes over the four vital date
properties (birth, baptism, death, burial):
- When all claims under a property agree on the same date at different
  precisions, the most precise one becomes preferred
- When claims disagree, --prefer picks the winner by source database
  priority, but only if exactly one of the disputed dates carries it

Example:
  lineage check-dates Q5598 --test
  lineage check-dates Q5598 --prefer ecartico,genealogics`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckDates,
}

func init() {
	rootCmd.AddCommand(checkDatesCmd)

	checkDatesCmd.Flags().BoolVar(&checkTest, "test", false, "print the would-be edit instead of sending it")
	checkDatesCmd.Flags().DurationVar(&checkTimeout, "timeout", time.Minute, "overall timeout")
	checkDatesCmd.Flags().StringSliceVar(&preferOrder, "prefer", nil,
		"source databases in priority order (ecartico, genealogics, wikitree)")
}

func runCheckDates(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	priority, err := databasePriority(preferOrder)
	if err != nil {
		return err
	}

	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	_, err = checkItemDates(ctx, session, args[0], priority, checkTest, cfg.Output.Verbose)
	return err
}

// checkItemDates loads one item and runs the rank passes on it, returning the
// submitted edit summary. Shared with the batch command.
func checkItemDates(ctx context.Context, session pageSource, qid string,
	priority []reference.Reference, test, verbose bool) (string, error) {

	entity, err := session.GetEntity(ctx, qid)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", qid, err)
	}
	page, err := reconcile.NewPage(entity, test)
	if err != nil {
		return "", err
	}
	page.Verbose = verbose

	page.CheckDates()
	if len(priority) > 0 {
		page.PreferDates(priority)
	}
	return page.Commit(ctx, session)
}

// pageSource is the session surface the date commands need.
type pageSource interface {
	GetEntity(ctx context.Context, qid string) (*model.Entity, error)
	EditEntity(ctx context.Context, qid string, edit *reconcile.Edit) error
}

// databasePriority maps database names onto property-level references.
func databasePriority(names []string) ([]reference.Reference, error) {
	var out []reference.Reference
	for _, name := range names {
		switch name {
		case "ecartico":
			out = append(out, reference.Database{
				Property: model.PIDEcarticoPersonID, DatabaseQID: model.QIDEcartico})
		case "genealogics":
			out = append(out, reference.Database{
				Property: model.PIDGenealogicsPersonID, DatabaseQID: model.QIDGenealogics})
		case "wikitree":
			out = append(out, reference.Database{
				Property: model.PIDWikiTreePersonID, DatabaseQID: model.QIDWikiTree})
		default:
			return nil, model.Invalidf("unknown source database %q", name)
		}
	}
	return out, nil
}
