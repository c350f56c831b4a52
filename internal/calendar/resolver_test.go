package calendar

import (
	"testing"

	"github.com/ppiankov/lineage/internal/model"
)

func defaultResolver() Resolver {
	return Resolver{LastJulian: DefaultLastJulian, FirstGregorian: DefaultFirstGregorian}
}

func TestResolver_FullDates(t *testing.T) {
	r := defaultResolver()
	tests := []struct {
		y, m, d int
		want    string
	}{
		{1582, 10, 1, model.URLProlepticJulianCalendar},
		{1582, 10, 4, model.URLProlepticJulianCalendar},
		{1582, 10, 15, model.URLProlepticGregorianCalendar},
		{1582, 10, 20, model.URLProlepticGregorianCalendar},
		{1500, 1, 1, model.URLProlepticJulianCalendar},
		{1700, 1, 1, model.URLProlepticGregorianCalendar},
	}
	for _, tt := range tests {
		got, err := r.CalendarURL(tt.y, tt.m, tt.d)
		if err != nil {
			t.Fatalf("CalendarURL(%d,%d,%d): %v", tt.y, tt.m, tt.d, err)
		}
		if got != tt.want {
			t.Errorf("CalendarURL(%d,%d,%d) = %s, want %s", tt.y, tt.m, tt.d, got, tt.want)
		}
	}
}

func TestResolver_GapDate(t *testing.T) {
	// 1582-10-10 falls in the days removed by the reform: ambiguous.
	r := defaultResolver()
	got, err := r.CalendarURL(1582, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLAssumedGregorianCalendar {
		t.Errorf("gap date = %s, want assumed gregorian", got)
	}
}

func TestResolver_GapDateWithOverlap(t *testing.T) {
	// A country where both calendars cover the probe date.
	r := Resolver{
		LastJulian:     Boundary{Year: 1700, Month: 2, Day: 18},
		FirstGregorian: Boundary{Year: 1582, Month: 10, Day: 15},
	}
	got, err := r.CalendarURL(1600, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLAssumedGregorianCalendar {
		t.Errorf("overlapping calendars should yield assumed gregorian, got %s", got)
	}
}

func TestResolver_YearOnly(t *testing.T) {
	r := defaultResolver()

	got, err := r.CalendarURL(1500, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLProlepticJulianCalendar {
		t.Errorf("1500 = %s, want julian", got)
	}

	got, err = r.CalendarURL(1700, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLProlepticGregorianCalendar {
		t.Errorf("1700 = %s, want gregorian", got)
	}

	// 1582 straddles the boundary: Jan 1 is Julian, Dec 31 is Gregorian.
	got, err = r.CalendarURL(1582, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLAssumedGregorianCalendar {
		t.Errorf("1582 = %s, want assumed gregorian", got)
	}
}

func TestResolver_YearMonth(t *testing.T) {
	r := defaultResolver()

	got, err := r.CalendarURL(1582, 9, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLProlepticJulianCalendar {
		t.Errorf("1582-09 = %s, want julian", got)
	}

	got, err = r.CalendarURL(1582, 11, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLProlepticGregorianCalendar {
		t.Errorf("1582-11 = %s, want gregorian", got)
	}

	got, err = r.CalendarURL(1582, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLAssumedGregorianCalendar {
		t.Errorf("1582-10 = %s, want assumed gregorian", got)
	}
}

func TestResolver_NoBoundary(t *testing.T) {
	r := Resolver{}
	got, err := r.CalendarURL(1600, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLUnspecifiedCalendar {
		t.Errorf("resolver without boundaries = %s, want unspecified", got)
	}
}

func TestResolver_NoDate(t *testing.T) {
	r := defaultResolver()
	if _, err := r.CalendarURL(0, 0, 0); err == nil {
		t.Error("expected error for empty date")
	}
}

const countriesYAML = `
Q55:
    code: nl
    description: Netherlands
    last_julian_date:
        year: 1582
        month: 12
        day: 14
    first_gregorian_date:
        year: 1582
        month: 12
        day: 25
Q29999:
    code: nl-kingdom
    description: Kingdom of the Netherlands
    use: nl
Q38:
    code: it
    description: Italy
    no_julian_calendar: true
Q30:
    code: us
    description: United States
`

func TestCountryTable_Lookup(t *testing.T) {
	table, err := ParseCountryTable([]byte(countriesYAML))
	if err != nil {
		t.Fatal(err)
	}

	last, first, ok := table.Lookup("Q55")
	if !ok {
		t.Fatal("expected Q55 to resolve")
	}
	if last.Day != 14 || first.Day != 25 {
		t.Errorf("Q55 boundary = %v / %v", last, first)
	}

	// Alias follows the `use` code.
	aLast, aFirst, ok := table.Lookup("Q29999")
	if !ok {
		t.Fatal("expected alias to resolve")
	}
	if aLast != last || aFirst != first {
		t.Errorf("alias boundary = %v / %v, want %v / %v", aLast, aFirst, last, first)
	}

	// no_julian_calendar expands to the papal boundary.
	iLast, iFirst, ok := table.Lookup("Q38")
	if !ok {
		t.Fatal("expected Q38 to resolve")
	}
	if iLast != DefaultLastJulian || iFirst != DefaultFirstGregorian {
		t.Errorf("no_julian_calendar boundary = %v / %v", iLast, iFirst)
	}

	// Entry without boundary data does not resolve.
	if _, _, ok := table.Lookup("Q30"); ok {
		t.Error("country without boundaries should not resolve")
	}
	if _, _, ok := table.Lookup("Q999999"); ok {
		t.Error("unknown country should not resolve")
	}
}

func TestService_MissingCountryFails(t *testing.T) {
	table, err := ParseCountryTable([]byte(countriesYAML))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewService("Q999999", table); err == nil {
		t.Error("expected error for unknown country")
	}
	if _, err := NewService("Q30", table); err == nil {
		t.Error("expected error for country without boundary data")
	}
}

func TestService_DefaultBoundary(t *testing.T) {
	svc, err := NewService("", nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.CalendarURL(1500, 6, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != model.URLProlepticJulianCalendar {
		t.Errorf("default service 1500-06-01 = %s, want julian", got)
	}
}

func TestService_ResolveDate(t *testing.T) {
	svc, err := NewService("", nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := svc.ResolveDate(model.MustDate(1500, 6, 1))
	if err != nil {
		t.Fatal(err)
	}
	if d.Calendar != model.CalendarJulian {
		t.Errorf("calendar = %d, want julian", d.Calendar)
	}

	d, err = svc.ResolveDate(model.YearDate(1582))
	if err != nil {
		t.Fatal(err)
	}
	if d.Calendar != model.CalendarAssumedGregorian {
		t.Errorf("calendar = %d, want assumed gregorian", d.Calendar)
	}
}
