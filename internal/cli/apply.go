package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/lineage/internal/calendar"
	"github.com/ppiankov/lineage/internal/lookup"
	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reconcile"
	"github.com/ppiankov/lineage/internal/reference"
	"github.com/ppiankov/lineage/internal/validate"
)

var (
	applyTest    bool
	applyDryRun  bool
	applyTimeout time.Duration
	lookupFile   string
	countryQID   string
	removeOld    bool
	skipStrong   bool
	checkIDs     bool
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply <record.json>",
	Short: "Reconcile one record file against its Wikidata item",
	Long: `Apply reads a record file of biographical facts and reconciles them
against the item's existing claims:
- Exact matches only pick up the record's reference
- Compatible claims (a bare year versus a full date) are merged and updated
- New facts become new referenced claims
- Ambiguous situations are refused and reported, never edited

Example:
  lineage apply rembrandt.json --test
  lineage apply rembrandt.json --lookup-table ecartico.yaml --country Q55
  lineage apply rembrandt.json --remove-old-claims --check-ids`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().BoolVar(&applyTest, "test", false, "print the would-be edit instead of sending it")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "log edits without sending them")
	applyCmd.Flags().DurationVar(&applyTimeout, "timeout", 2*time.Minute, "overall timeout")
	applyCmd.Flags().StringVar(&lookupFile, "lookup-table", "", "YAML table mapping source ids to items")
	applyCmd.Flags().StringVar(&countryQID, "country", "", "country item for Julian/Gregorian resolution")
	applyCmd.Flags().BoolVar(&removeOld, "remove-old-claims", false, "strip this source from claims it no longer supports")
	applyCmd.Flags().BoolVar(&skipStrong, "skip-strong-refs", false, "leave claims with strong sources untouched")
	applyCmd.Flags().BoolVar(&checkIDs, "check-ids", false, "verify external ids against the source site before adding")
}

// recordFile is one source-database record: who it is about, where it comes
// from, and the facts it states.
type recordFile struct {
	QID    string        `json:"qid"`
	Source recordSource  `json:"source"`
	Labels []recordLabel `json:"labels,omitempty"`
	Facts  []recordFact  `json:"facts"`
}

type recordSource struct {
	// Identifier property and record id for a known database
	Property string `json:"property,omitempty"`
	ID       string `json:"id,omitempty"`

	// Plain stated-in publication, used when Property is empty
	StatedIn string `json:"stated_in,omitempty"`
	URL      string `json:"url,omitempty"`
}

type recordLabel struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

type recordFact struct {
	Field string `json:"field"`

	// Date text for date fields ("1606", "1606-07", "1606-07-15")
	Value  string `json:"value,omitempty"`
	Value2 string `json:"value2,omitempty"`

	// Item target, either resolved or as a source-local id
	QID string `json:"qid,omitempty"`
	ID  string `json:"id,omitempty"`

	// circa, before, after, between, or
	Modifier string `json:"modifier,omitempty"`

	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Wikidata.DryRun = cfg.Wikidata.DryRun || applyDryRun

	rec, err := readRecordFile(args[0])
	if err != nil {
		return err
	}

	var resolver lookup.Resolver
	if lookupFile != "" {
		table, err := lookup.LoadTable(lookupFile)
		if err != nil {
			return err
		}
		resolver = table
	}

	var table *calendar.CountryTable
	if cfg.Calendar.CountriesFile != "" {
		table, err = calendar.LoadCountryTable(cfg.Calendar.CountriesFile)
		if err != nil {
			return err
		}
	}
	cal, err := calendar.NewService(countryQID, table)
	if err != nil {
		return err
	}

	var checker reconcile.IDChecker
	if checkIDs {
		checker = validate.NewChecker(cfg.HTTP.Timeout, cfg.HTTP.UserAgent,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	}

	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	entity, err := session.GetEntity(ctx, rec.QID)
	if err != nil {
		return fmt.Errorf("load %s: %w", rec.QID, err)
	}
	page, err := reconcile.NewPage(entity, applyTest)
	if err != nil {
		return err
	}
	page.Verbose = cfg.Output.Verbose
	page.DetermineBirthDeath()

	opts := reconcile.Options{RemoveOldClaims: removeOld, SkipIfStrongRefs: skipStrong}
	if err := queueRecord(ctx, page, rec, resolver, cal, checker, opts); err != nil {
		return err
	}

	summary, err := page.Commit(ctx, session)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", rec.QID, err)
	}
	if summary != "" && cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "%s: %s\n", rec.QID, summary)
	}
	return nil
}

func readRecordFile(path string) (*recordFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec recordFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if !model.IsQID(rec.QID) {
		return nil, model.Invalidf("record names no item: %q", rec.QID)
	}
	return &rec, nil
}

// recordReference maps the record's source onto a reference block.
func recordReference(src recordSource) (reference.Reference, error) {
	switch src.Property {
	case model.PIDEcarticoPersonID:
		return reference.NewEcartico(src.ID), nil
	case model.PIDGenealogicsPersonID:
		return reference.NewGenealogics(src.ID), nil
	case model.PIDWikiTreePersonID:
		return reference.NewWikiTree(src.ID), nil
	case "":
		if src.StatedIn == "" {
			return nil, model.Invalidf("record has no source")
		}
		return reference.StatedIn{QID: src.StatedIn, URL: src.URL}, nil
	}
	return nil, model.Invalidf("unsupported source property %s", src.Property)
}

// queueRecord turns the record's facts into queued statements on the page.
func queueRecord(ctx context.Context, p *reconcile.Page, rec *recordFile,
	resolver lookup.Resolver, cal *calendar.Service, checker reconcile.IDChecker,
	opts reconcile.Options) error {

	ref, err := recordReference(rec.Source)
	if err != nil {
		return err
	}

	for _, l := range rec.Labels {
		p.AddLabel(l.Language, l.Text)
	}

	// The record's own id links back to the database it came from.
	if rec.Source.Property != "" {
		st := reconcile.NewExternalID(rec.Source.Property, rec.Source.ID)
		st.Checker = checker
		p.AddStatementOpts(st, ref, opts)
	}

	harvestYears(p, rec, cal)

	for _, f := range rec.Facts {
		if err := queueFact(ctx, p, f, ref, resolver, cal, opts); err != nil {
			return fmt.Errorf("%s: %w", f.Field, err)
		}
	}
	return nil
}

// harvestYears feeds the page's lifetime estimates from every dated fact on
// the record before any statement is queued. Open-ended vital date ranges
// then resolve against the full record, not just the facts listed before
// them. Parse errors are left for queueFact to report.
func harvestYears(p *reconcile.Page, rec *recordFile, cal *calendar.Service) {
	for _, f := range rec.Facts {
		switch f.Field {
		case "date_of_birth", "date_of_baptism", "date_of_death", "date_of_burial":
			rd, err := parseRecordDate(f, cal)
			if err != nil {
				continue
			}
			// Open ranges need the estimates this pass is building.
			if rd.Date.IsZero() && (rd.Earliest.IsZero() || rd.Latest.IsZero()) {
				continue
			}
			ev := reconcile.Birth
			if f.Field == "date_of_death" || f.Field == "date_of_burial" {
				ev = reconcile.Death
			}
			d, circa, err := rd.Resolve(p, ev)
			if err != nil || d.IsZero() || d.Precision < model.PrecisionYear {
				continue
			}
			if ev == reconcile.Birth {
				p.AddBirthYear(d.Year, circa)
			} else {
				p.AddDeathYear(d.Year, circa)
			}

		case "marriage":
			if f.Value == "" {
				continue
			}
			if d, err := parseCalendarDate(f.Value, cal); err == nil && d.Precision >= model.PrecisionYear {
				p.AddAliveYear(d.Year, false)
			}

		default:
			for _, s := range []string{f.Start, f.End} {
				if s == "" {
					continue
				}
				if d, err := parseCalendarDate(s, cal); err == nil && d.Precision >= model.PrecisionYear {
					p.AddAliveYear(d.Year, false)
				}
			}
		}
	}
}

func queueFact(ctx context.Context, p *reconcile.Page, f recordFact,
	ref reference.Reference, resolver lookup.Resolver, cal *calendar.Service,
	opts reconcile.Options) error {

	switch f.Field {
	case "date_of_birth":
		return queueVitalDate(p, f, cal, ref, reconcile.Birth, false, opts)
	case "date_of_death":
		return queueVitalDate(p, f, cal, ref, reconcile.Death, false, opts)
	case "date_of_baptism":
		return queueVitalDate(p, f, cal, ref, reconcile.Birth, true, opts)
	case "date_of_burial":
		return queueVitalDate(p, f, cal, ref, reconcile.Death, true, opts)

	case "marriage":
		var date model.Date
		if f.Value != "" {
			d, err := parseCalendarDate(f.Value, cal)
			if err != nil {
				return err
			}
			date = d
		}
		p.AddMarriage(f.QID, date, ref)
		return nil

	case "external_id":
		// Value holds the identifier property, ID the record id
		if !model.IsPID(f.Value) {
			return model.Invalidf("bad identifier property %q", f.Value)
		}
		p.AddStatementOpts(reconcile.NewExternalID(f.Value, f.ID), ref, opts)
		return nil
	}

	ctor, kind, ok := itemField(f.Field)
	if !ok {
		return model.Invalidf("unknown field")
	}
	target, err := factTarget(ctx, f, kind, resolver)
	if err != nil {
		return err
	}
	if target == "" {
		// Source-local id without a known item; nothing to reconcile.
		return nil
	}
	st := ctor(target)
	switch f.Modifier {
	case "":
	case "possibly":
		st.Possibly = true
	default:
		return model.Invalidf("unknown modifier %q", f.Modifier)
	}
	if f.Start != "" {
		if st.StartDate, err = parseCalendarDate(f.Start, cal); err != nil {
			return err
		}
	}
	if f.End != "" {
		if st.EndDate, err = parseCalendarDate(f.End, cal); err != nil {
			return err
		}
	}
	p.AddStatementOpts(st, ref, opts)
	return nil
}

// itemField maps a record field name onto its statement constructor and the
// lookup namespace its source-local ids live in.
func itemField(field string) (func(string) *reconcile.ItemStatement, lookup.Kind, bool) {
	switch field {
	case "place_of_birth":
		return reconcile.NewPlaceOfBirth, lookup.KindPlace, true
	case "place_of_death":
		return reconcile.NewPlaceOfDeath, lookup.KindPlace, true
	case "sex":
		return reconcile.NewSexOrGender, "", true
	case "father":
		return reconcile.NewFather, lookup.KindPerson, true
	case "mother":
		return reconcile.NewMother, lookup.KindPerson, true
	case "child":
		return reconcile.NewChild, lookup.KindPerson, true
	case "occupation":
		return reconcile.NewOccupation, lookup.KindOccupation, true
	case "residence":
		return reconcile.NewResidence, lookup.KindPlace, true
	case "work_location":
		return reconcile.NewWorkLocation, lookup.KindPlace, true
	case "member_of":
		return reconcile.NewMemberOf, "", true
	case "religion":
		return reconcile.NewReligion, lookup.KindReligion, true
	case "genre":
		return reconcile.NewGenre, "", true
	}
	return nil, "", false
}

// factTarget resolves the fact's target item: an explicit QID, the sex
// shorthands, or a source-local id through the lookup table. An empty result
// means the id has no known item and the fact is skipped.
func factTarget(ctx context.Context, f recordFact, kind lookup.Kind, resolver lookup.Resolver) (string, error) {
	switch {
	case f.QID != "":
		return f.QID, nil
	case f.Field == "sex":
		switch f.Value {
		case "male":
			return model.QIDMale, nil
		case "female":
			return model.QIDFemale, nil
		case "":
			return "", model.Invalidf("no sex value")
		}
		return "", model.Invalidf("unknown sex value %q", f.Value)
	case f.ID != "":
		if resolver == nil || kind == "" {
			return "", nil
		}
		return resolver.QID(ctx, kind, f.ID)
	}
	return "", model.Invalidf("no target item")
}

func queueVitalDate(p *reconcile.Page, f recordFact, cal *calendar.Service,
	ref reference.Reference, ev reconcile.Event, proxy bool, opts reconcile.Options) error {

	rd, err := parseRecordDate(f, cal)
	if err != nil {
		return err
	}
	st, err := rd.Statement(p, ev, proxy)
	if err != nil || st == nil {
		return err
	}
	p.AddStatementOpts(st, ref, opts)
	return nil
}

// parseRecordDate turns the fact's date text and modifier into a record date.
func parseRecordDate(f recordFact, cal *calendar.Service) (reconcile.RecordDate, error) {
	d, err := parseCalendarDate(f.Value, cal)
	if err != nil {
		return reconcile.RecordDate{}, err
	}
	switch f.Modifier {
	case "":
		return reconcile.NewExactDate(d), nil
	case "circa":
		return reconcile.NewCircaDate(d), nil
	case "before":
		return reconcile.NewBeforeDate(d), nil
	case "after":
		return reconcile.NewAfterDate(d), nil
	case "between", "or":
		d2, err := parseCalendarDate(f.Value2, cal)
		if err != nil {
			return reconcile.RecordDate{}, err
		}
		if f.Modifier == "or" {
			return reconcile.NewOrDate(d, d2), nil
		}
		return reconcile.NewBetweenDates(d, d2), nil
	}
	return reconcile.RecordDate{}, model.Invalidf("unknown date modifier %q", f.Modifier)
}

// parseCalendarDate parses "YYYY", "YYYY-MM" or "YYYY-MM-DD" and resolves its
// calendar model against the record's country.
func parseCalendarDate(text string, cal *calendar.Service) (model.Date, error) {
	parts := strings.Split(text, "-")
	if len(parts) > 3 || parts[0] == "" {
		return model.Date{}, model.Invalidf("bad date %q", text)
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return model.Date{}, model.Invalidf("bad date %q", text)
		}
		nums[i] = n
	}
	d, err := model.NewDate(nums[0], nums[1], nums[2])
	if err != nil {
		return model.Date{}, err
	}
	if !d.IsValid() {
		return model.Date{}, model.Invalidf("bad date %q", text)
	}
	if cal == nil {
		return d, nil
	}
	return cal.ResolveDate(d)
}
