// Package reference models the provenance attachments on claims and the
// strong/weak distinction that governs which sources may be discarded.
package reference

import (
	"time"

	"github.com/ppiankov/lineage/internal/model"
)

// Reference identifies one external provenance for a fact. Implementations
// know how to recognize themselves inside a claim's existing sources and how
// to materialize a fresh source block.
type Reference interface {
	// MatchesSource reports whether src was produced by this reference.
	MatchesSource(src model.Source) bool

	// Strong reports whether the reference counts as a real source. Weak
	// references never displace existing data.
	Strong() bool

	// NewSource materializes the reference as a source block.
	NewSource() model.Source

	// Describe returns a short human-readable tag for logging.
	Describe() string
}

// OnClaim reports whether any of the claim's sources match ref.
func OnClaim(ref Reference, c *model.Claim) bool {
	for _, src := range c.Sources {
		if ref.MatchesSource(src) {
			return true
		}
	}
	return false
}

// nowFunc is swapped in tests so retrieved dates are stable.
var nowFunc = time.Now

func retrievedToday() model.Value {
	t := nowFunc().UTC()
	return model.TimeVal(model.Date{
		Year:      t.Year(),
		Month:     int(t.Month()),
		Day:       t.Day(),
		Precision: model.PrecisionDay,
		Calendar:  model.CalendarGregorian,
	})
}

// ExternalID references a database record via its identifier property:
// stated-in the database item, the identifier itself, and a retrieved date.
type ExternalID struct {
	Property    string // identifier property, e.g. the Ecartico person id
	DatabaseQID string
	ID          string
}

// NewEcartico references an Ecartico person record.
func NewEcartico(id string) ExternalID {
	return ExternalID{Property: model.PIDEcarticoPersonID, DatabaseQID: model.QIDEcartico, ID: id}
}

// NewGenealogics references a Genealogics person record.
func NewGenealogics(id string) ExternalID {
	return ExternalID{Property: model.PIDGenealogicsPersonID, DatabaseQID: model.QIDGenealogics, ID: id}
}

// NewWikiTree references a WikiTree person profile.
func NewWikiTree(id string) ExternalID {
	return ExternalID{Property: model.PIDWikiTreePersonID, DatabaseQID: model.QIDWikiTree, ID: id}
}

func (r ExternalID) MatchesSource(src model.Source) bool {
	vals, ok := src.Snaks[r.Property]
	if !ok {
		return false
	}
	for _, v := range vals {
		if v.Str == r.ID {
			return true
		}
	}
	return false
}

func (r ExternalID) Strong() bool { return true }

func (r ExternalID) NewSource() model.Source {
	src := model.NewSource()
	src.Add(model.PIDStatedIn, model.ItemVal(r.DatabaseQID))
	src.Add(r.Property, model.ExternalIDVal(r.ID))
	src.Add(model.PIDRetrieved, retrievedToday())
	return src
}

func (r ExternalID) Describe() string { return r.Property + ":" + r.ID }

// Database matches any record of one source database, whatever the record
// id. Used for rank priority passes where only the database matters.
type Database struct {
	Property    string
	DatabaseQID string
}

func (r Database) MatchesSource(src model.Source) bool {
	if src.Has(r.Property) {
		return true
	}
	for _, v := range src.Snaks[model.PIDStatedIn] {
		if v.Kind == model.KindItem && v.QID == r.DatabaseQID {
			return true
		}
	}
	return false
}

func (r Database) Strong() bool { return true }

func (r Database) NewSource() model.Source {
	src := model.NewSource()
	src.Add(model.PIDStatedIn, model.ItemVal(r.DatabaseQID))
	src.Add(model.PIDRetrieved, retrievedToday())
	return src
}

func (r Database) Describe() string { return "any " + r.Property + " record" }

// StatedIn references a publication or database by its item, without an
// identifier property.
type StatedIn struct {
	QID string
	URL string // optional reference URL
}

func (r StatedIn) MatchesSource(src model.Source) bool {
	for _, v := range src.Snaks[model.PIDStatedIn] {
		if v.Kind == model.KindItem && v.QID == r.QID {
			return true
		}
	}
	return false
}

func (r StatedIn) Strong() bool { return true }

func (r StatedIn) NewSource() model.Source {
	src := model.NewSource()
	src.Add(model.PIDStatedIn, model.ItemVal(r.QID))
	if r.URL != "" {
		src.Add(model.PIDReferenceURL, model.StringVal(r.URL))
	}
	src.Add(model.PIDRetrieved, retrievedToday())
	return src
}

func (r StatedIn) Describe() string { return "stated in " + r.QID }

// Wikipedia references content imported from a Wikimedia project. Always weak.
type Wikipedia struct {
	ProjectQID string
}

func (r Wikipedia) MatchesSource(src model.Source) bool {
	for _, v := range src.Snaks[model.PIDImportedFromWikimedia] {
		if v.Kind == model.KindItem && v.QID == r.ProjectQID {
			return true
		}
	}
	return false
}

func (r Wikipedia) Strong() bool { return false }

func (r Wikipedia) NewSource() model.Source {
	src := model.NewSource()
	src.Add(model.PIDImportedFromWikimedia, model.ItemVal(r.ProjectQID))
	return src
}

func (r Wikipedia) Describe() string { return "imported from " + r.ProjectQID }

// Heuristic marks a value inferred by the bot itself rather than found in a
// source. Always weak.
type Heuristic struct{}

func (Heuristic) MatchesSource(src model.Source) bool {
	return src.Has(model.PIDBasedOnHeuristic)
}

func (Heuristic) Strong() bool { return false }

func (Heuristic) NewSource() model.Source {
	src := model.NewSource()
	src.Add(model.PIDBasedOnHeuristic, model.ItemVal(model.QIDBasedOnHeuristic))
	return src
}

func (Heuristic) Describe() string { return "based on heuristic" }

// IsWeakSource classifies an existing source block as weak: heuristic-only,
// imported-from-Wikimedia, import-URL, or a bare VIAF stated-in with nothing
// else attached. Weak sources are stripped once a strong reference arrives.
func IsWeakSource(src model.Source) bool {
	if src.Has(model.PIDBasedOnHeuristic) {
		return true
	}
	if src.Has(model.PIDImportedFromWikimedia) {
		return true
	}
	if src.Has(model.PIDWikimediaImportURL) {
		return true
	}
	return isBareVIAF(src)
}

func isBareVIAF(src model.Source) bool {
	statedIn, ok := src.Snaks[model.PIDStatedIn]
	if !ok {
		return false
	}
	for _, v := range statedIn {
		if v.Kind != model.KindItem || v.QID != model.QIDVIAF {
			return false
		}
	}
	for _, pid := range src.Order {
		switch pid {
		case model.PIDStatedIn, model.PIDRetrieved, model.PIDVIAFID:
		default:
			return false
		}
	}
	return true
}

// HasStrongSource reports whether any source on the claim is not weak.
func HasStrongSource(c *model.Claim) bool {
	for _, src := range c.Sources {
		if !IsWeakSource(src) {
			return true
		}
	}
	return false
}

// StripWeakSources removes weak sources from the claim, returning how many
// were dropped.
func StripWeakSources(c *model.Claim) int {
	kept := c.Sources[:0]
	dropped := 0
	for _, src := range c.Sources {
		if IsWeakSource(src) {
			dropped++
			continue
		}
		kept = append(kept, src)
	}
	c.Sources = kept
	return dropped
}
