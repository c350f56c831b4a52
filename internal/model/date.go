package model

import (
	"fmt"
	"time"
)

// Precision is the granularity of a date value, using the Wikidata numeric levels.
type Precision int

const (
	PrecisionMillennium Precision = 6
	PrecisionCentury    Precision = 7
	PrecisionDecade     Precision = 8
	PrecisionYear       Precision = 9
	PrecisionMonth      Precision = 10
	PrecisionDay        Precision = 11
)

// Calendar identifies the calendar model of a date.
type Calendar int

const (
	CalendarUnset Calendar = iota
	CalendarJulian
	CalendarGregorian
	CalendarAssumedGregorian // calendar unknown, treated as Gregorian by convention
)

// Calendar model URLs as used in Wikidata time values.
const (
	URLProlepticJulianCalendar    = "http://www.wikidata.org/entity/Q1985786"
	URLProlepticGregorianCalendar = "http://www.wikidata.org/entity/Q1985727"
	URLUnspecifiedCalendar        = "http://www.wikidata.org/entity/Q22838819"
	URLAssumedGregorianCalendar   = "http://www.wikidata.org/entity/Q107080891"
)

// Date is a partial calendar date with an explicit precision and calendar model.
// Zero Month/Day mean "absent". Dates are treated as immutable once attached to
// a claim; the mutators exist only for midpoint construction.
type Date struct {
	Year      int
	Month     int
	Day       int
	Precision Precision
	Calendar  Calendar
}

// NewDate builds a date whose precision is derived from the most specific
// non-zero field. A date with no fields at all is invalid.
func NewDate(year, month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	switch {
	case day != 0:
		d.Precision = PrecisionDay
	case month != 0:
		d.Precision = PrecisionMonth
	case year != 0:
		d.Precision = PrecisionYear
	default:
		return Date{}, Invalidf("invalid date: no year, month or day")
	}
	return d, nil
}

// MustDate is NewDate for static values in tests and tables.
func MustDate(year, month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// YearDate returns a year-precision date.
func YearDate(year int) Date {
	return Date{Year: year, Precision: PrecisionYear}
}

// DateFromTime converts a Wikidata time value into a Date. The calendar model
// URL must be one of the four recognized models.
func DateFromTime(t TimeValue) (Date, error) {
	var cal Calendar
	switch t.CalendarModel {
	case URLProlepticJulianCalendar:
		cal = CalendarJulian
	case URLProlepticGregorianCalendar:
		cal = CalendarGregorian
	case URLUnspecifiedCalendar:
		cal = CalendarUnset
	case URLAssumedGregorianCalendar:
		cal = CalendarAssumedGregorian
	default:
		return Date{}, Invalidf("unrecognized calendar model %q", t.CalendarModel)
	}
	return Date{
		Year:      t.Year,
		Month:     t.Month,
		Day:       t.Day,
		Precision: Precision(t.Precision),
		Calendar:  cal,
	}, nil
}

// DecadeOf maps a year onto its decade bucket: 2010-2019 is one decade.
func DecadeOf(year int) int { return floorDiv(year, 10) }

// CenturyOf maps a year onto its century bucket: 1801-1900 is the 19th century.
func CenturyOf(year int) int { return floorDiv(year-1, 100) }

// MillenniumOf maps a year onto its millennium bucket: 1001-2000 is the second
// millennium.
func MillenniumOf(year int) int { return floorDiv(year-1, 1000) }

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Middle returns the midpoint of two bounding dates with a defensible
// precision. If both bounds share year and month at month-or-finer precision
// the result keeps month precision. Otherwise the year midpoint is used and
// precision is chosen by bucket alignment (strict) or by the width of the span
// in years (non-strict).
func Middle(earliest, latest Date, strict bool) (Date, error) {
	if earliest.Precision >= PrecisionMonth && latest.Precision >= PrecisionMonth &&
		earliest.Year == latest.Year && earliest.Month == latest.Month {
		return Date{
			Year:      earliest.Year,
			Month:     earliest.Month,
			Precision: PrecisionMonth,
		}, nil
	}

	if earliest.Year > latest.Year {
		return Date{}, Invalidf("earliest year %d after latest year %d", earliest.Year, latest.Year)
	}

	mid := (earliest.Year + latest.Year) / 2
	span := latest.Year - earliest.Year + 1

	var prec Precision
	if strict {
		switch {
		case earliest.Year == latest.Year:
			prec = PrecisionYear
		case DecadeOf(earliest.Year) == DecadeOf(latest.Year):
			prec = PrecisionDecade
		case CenturyOf(earliest.Year) == CenturyOf(latest.Year):
			prec = PrecisionCentury
		case MillenniumOf(earliest.Year) == MillenniumOf(latest.Year):
			prec = PrecisionMillennium
		default:
			return Date{}, Invalidf("invalid precision for span %d-%d", earliest.Year, latest.Year)
		}
	} else {
		switch {
		case span <= 1:
			prec = PrecisionYear
		case span <= 11:
			prec = PrecisionDecade
		case span <= 110:
			prec = PrecisionCentury
		default:
			prec = PrecisionMillennium
		}
	}

	return Date{Year: mid, Precision: prec}, nil
}

// IsFirstOfJanuary reports whether the date is the start boundary of its year.
func (d Date) IsFirstOfJanuary() bool {
	return (d.Day == 1 && d.Month == 1 && d.Precision == PrecisionDay) ||
		(d.Month == 1 && d.Precision == PrecisionMonth)
}

// IsLastOfDecember reports whether the date is the end boundary of its year.
func (d Date) IsLastOfDecember() bool {
	return (d.Day == 31 && d.Month == 12 && d.Precision == PrecisionDay) ||
		(d.Month == 12 && d.Precision == PrecisionMonth)
}

// ToYearPrecision drops month and day, keeping only the year.
func (d Date) ToYearPrecision() Date {
	return Date{Year: d.Year, Precision: PrecisionYear, Calendar: d.Calendar}
}

// Follows reports whether d is the year immediately after other. Both dates
// must be at year precision.
func (d Date) Follows(other Date) (bool, error) {
	if d.Precision != other.Precision {
		return false, Invalidf("cannot compare consecutive dates of different precision")
	}
	if d.Precision != PrecisionYear {
		return false, Invalidf("consecutive-date check needs year precision, got %d", d.Precision)
	}
	return d.Year == other.Year+1, nil
}

// CalendarModel returns the calendar model URL for the date. When no calendar
// is set, years before the Gregorian reform default to Julian.
func (d Date) CalendarModel() string {
	cal := d.Calendar
	if cal == CalendarUnset {
		if d.Year < 1582 {
			cal = CalendarJulian
		} else {
			cal = CalendarGregorian
		}
	}
	switch cal {
	case CalendarJulian:
		return URLProlepticJulianCalendar
	case CalendarGregorian, CalendarAssumedGregorian:
		return URLProlepticGregorianCalendar
	}
	return URLProlepticGregorianCalendar
}

// IsValid checks day/month ranges and real calendar validity (leap years,
// 30-day months). A date without a day is always valid at its precision.
func (d Date) IsValid() bool {
	if d.Day < 0 || d.Day > 31 {
		return false
	}
	if d.Month < 0 || d.Month > 12 {
		return false
	}
	if d.Day == 0 {
		return true
	}
	if d.Month == 0 {
		return false
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && int(t.Month()) == d.Month && t.Day() == d.Day
}

// Normalized zeroes the fields below the date's precision, mirroring how
// Wikidata normalizes time values before comparison.
func (d Date) Normalized() Date {
	n := d
	if n.Precision < PrecisionDay {
		n.Day = 0
	}
	if n.Precision < PrecisionMonth {
		n.Month = 0
	}
	return n
}

// DatesEqual compares two dates on their normalized (year, month, day,
// precision) tuples. With ignoreCalendarModel the calendar labels are not
// compared; otherwise the labels must match when both sides have one set.
func DatesEqual(a, b Date, ignoreCalendarModel bool) bool {
	na, nb := a.Normalized(), b.Normalized()
	if na.Year != nb.Year || na.Month != nb.Month || na.Day != nb.Day || na.Precision != nb.Precision {
		return false
	}
	if ignoreCalendarModel {
		return true
	}
	if na.Calendar == CalendarUnset || nb.Calendar == CalendarUnset {
		return true
	}
	return na.Calendar == nb.Calendar
}

// SameNormalizedDate lowers both dates to their common precision and compares.
// Calendar labels are ignored below year precision. Used when bucketing claims
// that describe the same real-world date at mixed precision.
func SameNormalizedDate(a, b Date) bool {
	prec := a.Precision
	if b.Precision < prec {
		prec = b.Precision
	}
	switch prec {
	case PrecisionDay:
		if a.Day != b.Day {
			return false
		}
		fallthrough
	case PrecisionMonth:
		if a.Month != b.Month {
			return false
		}
		fallthrough
	case PrecisionYear:
		if a.Year != b.Year {
			return false
		}
	case PrecisionDecade:
		if DecadeOf(a.Year) != DecadeOf(b.Year) {
			return false
		}
	case PrecisionCentury:
		if CenturyOf(a.Year) != CenturyOf(b.Year) {
			return false
		}
	case PrecisionMillennium:
		if MillenniumOf(a.Year) != MillenniumOf(b.Year) {
			return false
		}
	}
	if prec <= PrecisionYear {
		return true
	}
	if a.Calendar == CalendarUnset || b.Calendar == CalendarUnset {
		return true
	}
	return a.Calendar == b.Calendar
}

// TimeValue exports the date as a Wikidata time value. Invalid dates are
// rejected rather than silently written.
func (d Date) TimeValue() (TimeValue, error) {
	if !d.IsValid() {
		return TimeValue{}, Invalidf("invalid date: y:%d m:%d d:%d", d.Year, d.Month, d.Day)
	}
	return TimeValue{
		Year:          d.Year,
		Month:         d.Month,
		Day:           d.Day,
		Precision:     int(d.Precision),
		CalendarModel: d.CalendarModel(),
	}, nil
}

func (d Date) String() string {
	switch d.Precision {
	case PrecisionDay:
		return fmt.Sprintf("%d-%d-%d", d.Year, d.Month, d.Day)
	case PrecisionMonth:
		return fmt.Sprintf("%d-%d", d.Year, d.Month)
	case PrecisionYear:
		return fmt.Sprintf("%d", d.Year)
	case PrecisionDecade:
		return fmt.Sprintf("%ds", DecadeOf(d.Year)*10)
	case PrecisionCentury:
		return fmt.Sprintf("C%d", CenturyOf(d.Year)+1)
	case PrecisionMillennium:
		return fmt.Sprintf("M%d", MillenniumOf(d.Year)+1)
	}
	return fmt.Sprintf("unknown precision %d", d.Precision)
}

// IsZero reports whether the date carries no value at all.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0 && d.Precision == 0
}
