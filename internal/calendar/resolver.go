// Package calendar decides whether a date is Julian, Gregorian, or ambiguous
// for a given country's calendar transition.
package calendar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lineage/internal/model"
)

// Boundary is one side of a country's Julian-to-Gregorian transition.
type Boundary struct {
	Year  int `yaml:"year"`
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
}

func (b Boundary) isSet() bool { return b.Year != 0 }

func (b Boundary) tuple() [3]int { return [3]int{b.Year, b.Month, b.Day} }

func tupleLE(a, b [3]int) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] <= b[2]
}

// Papal-bull reform boundary, used when a country has no override.
var (
	DefaultLastJulian     = Boundary{Year: 1582, Month: 10, Day: 4}
	DefaultFirstGregorian = Boundary{Year: 1582, Month: 10, Day: 15}
)

// countryEntry is one country record in the countries file, keyed by QID.
type countryEntry struct {
	Code               string   `yaml:"code"`
	Description        string   `yaml:"description"`
	Use                string   `yaml:"use"`
	NoJulianCalendar   bool     `yaml:"no_julian_calendar"`
	LastJulianDate     Boundary `yaml:"last_julian_date"`
	FirstGregorianDate Boundary `yaml:"first_gregorian_date"`
}

// CountryTable maps country QIDs to transition boundaries.
type CountryTable struct {
	entries map[string]countryEntry
}

// LoadCountryTable reads a countries YAML file.
func LoadCountryTable(path string) (*CountryTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read countries file: %w", err)
	}
	return ParseCountryTable(data)
}

// ParseCountryTable parses countries YAML content.
func ParseCountryTable(data []byte) (*CountryTable, error) {
	entries := map[string]countryEntry{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse countries file: %w", err)
	}
	return &CountryTable{entries: entries}, nil
}

// Lookup resolves a country QID to its transition boundaries, following `use`
// aliases and expanding no_julian_calendar into the papal-bull boundary. The
// second return is false when the country is unknown or carries no boundary.
func (t *CountryTable) Lookup(qid string) (last, first Boundary, ok bool) {
	if t == nil {
		return Boundary{}, Boundary{}, false
	}
	entry, found := t.entries[qid]
	if !found {
		return Boundary{}, Boundary{}, false
	}
	last = entry.LastJulianDate
	first = entry.FirstGregorianDate
	noJulian := entry.NoJulianCalendar
	if entry.Use != "" {
		for _, other := range t.entries {
			if other.Code == entry.Use {
				last = other.LastJulianDate
				first = other.FirstGregorianDate
				noJulian = other.NoJulianCalendar
				break
			}
		}
	}
	if noJulian {
		last = DefaultLastJulian
		first = DefaultFirstGregorian
	}
	if !first.isSet() {
		return Boundary{}, Boundary{}, false
	}
	return last, first, true
}

// Resolver determines the calendar model for dates against one transition.
type Resolver struct {
	LastJulian     Boundary
	FirstGregorian Boundary
}

// CalendarURL returns the calendar model URL for a possibly partial date.
// A year-only or year-month date is probed at both ends of its range; if the
// ends disagree the date straddles the transition and the assumed-Gregorian
// model is returned.
func (r Resolver) CalendarURL(year, month, day int) (string, error) {
	if !r.LastJulian.isSet() || !r.FirstGregorian.isSet() {
		return model.URLUnspecifiedCalendar, nil
	}
	switch {
	case year != 0 && month == 0 && day == 0:
		return r.probeRange(year, 1, 1, year, 12, 31)
	case year != 0 && month != 0 && day == 0:
		lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		return r.probeRange(year, month, 1, year, month, lastDay)
	case year != 0 && month != 0 && day != 0:
		return r.forYMD([3]int{year, month, day})
	}
	return "", model.Invalidf("insufficient date information for calendar determination")
}

// CalendarFor is CalendarURL for a Date value.
func (r Resolver) CalendarFor(d model.Date) (string, error) {
	return r.CalendarURL(d.Year, d.Month, d.Day)
}

func (r Resolver) probeRange(y1, m1, d1, y2, m2, d2 int) (string, error) {
	start, err := r.forYMD([3]int{y1, m1, d1})
	if err != nil {
		return "", err
	}
	end, err := r.forYMD([3]int{y2, m2, d2})
	if err != nil {
		return "", err
	}
	if start == end {
		return start, nil
	}
	return model.URLAssumedGregorianCalendar, nil
}

func (r Resolver) forYMD(ymd [3]int) (string, error) {
	isJulian := tupleLE(ymd, r.LastJulian.tuple())
	isGregorian := tupleLE(r.FirstGregorian.tuple(), ymd)
	switch {
	case isJulian && !isGregorian:
		return model.URLProlepticJulianCalendar, nil
	case isGregorian && !isJulian:
		return model.URLProlepticGregorianCalendar, nil
	}
	// Either both calendars cover the date (overlapping boundaries) or the
	// date falls in the days removed by the transition. Both cases are
	// ambiguous, not errors.
	return model.URLAssumedGregorianCalendar, nil
}

// Service binds a resolver to one country for the lifetime of a record.
type Service struct {
	CountryQID string
	resolver   Resolver
}

// NewService builds a service for countryQID. An empty QID or a nil table
// falls back to the papal-bull boundary. A country present in the table but
// without a first-Gregorian date is an error so missing table entries surface
// instead of silently defaulting.
func NewService(countryQID string, table *CountryTable) (*Service, error) {
	svc := &Service{
		CountryQID: countryQID,
		resolver:   Resolver{LastJulian: DefaultLastJulian, FirstGregorian: DefaultFirstGregorian},
	}
	if countryQID == "" || table == nil {
		return svc, nil
	}
	last, first, ok := table.Lookup(countryQID)
	if !ok {
		return nil, model.Preconditionf("no first_gregorian_date for %s", countryQID)
	}
	svc.resolver = Resolver{LastJulian: last, FirstGregorian: first}
	return svc, nil
}

// CalendarURL resolves the calendar model URL for a partial date.
func (s *Service) CalendarURL(year, month, day int) (string, error) {
	return s.resolver.CalendarURL(year, month, day)
}

// ResolveDate fills in the calendar label of a date from the country's
// transition and returns the annotated copy.
func (s *Service) ResolveDate(d model.Date) (model.Date, error) {
	url, err := s.resolver.CalendarFor(d)
	if err != nil {
		return model.Date{}, err
	}
	switch url {
	case model.URLProlepticJulianCalendar:
		d.Calendar = model.CalendarJulian
	case model.URLProlepticGregorianCalendar:
		d.Calendar = model.CalendarGregorian
	case model.URLAssumedGregorianCalendar:
		d.Calendar = model.CalendarAssumedGregorian
	default:
		d.Calendar = model.CalendarUnset
	}
	return d, nil
}
