package reconcile

import (
	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reference"
)

// MaxExpectedLifeSpan bounds the distance between a person's birth and death
// years when one end of a date range has to be estimated.
const MaxExpectedLifeSpan = 100

// RecordDate is a vital date as a source record states it: exact, approximate,
// a range, a before/after bound, or "X or Y" for a torn register entry.
type RecordDate struct {
	Date     model.Date
	Earliest model.Date
	Latest   model.Date
	Or       bool
	Circa    bool
}

// NewExactDate wraps a plain record date.
func NewExactDate(d model.Date) RecordDate { return RecordDate{Date: d} }

// NewCircaDate wraps an approximate record date.
func NewCircaDate(d model.Date) RecordDate { return RecordDate{Date: d, Circa: true} }

// NewBeforeDate maps a "before d" record to an open-ended range.
func NewBeforeDate(d model.Date) RecordDate { return RecordDate{Latest: d} }

// NewAfterDate maps an "after d" record to an open-ended range.
func NewAfterDate(d model.Date) RecordDate { return RecordDate{Earliest: d} }

// NewBetweenDates maps a "between a and b" record.
func NewBetweenDates(a, b model.Date) RecordDate { return RecordDate{Earliest: a, Latest: b} }

// NewOrDate maps an "a or b" record; the years must be consecutive.
func NewOrDate(a, b model.Date) RecordDate { return RecordDate{Earliest: a, Latest: b, Or: true} }

// Resolve turns the record date into a single date plus circa flag, filling a
// missing range bound from the page's estimate of the other vital event. The
// zero date with no error means the record gives nothing usable.
func (r RecordDate) Resolve(p *Page, ev Event) (model.Date, bool, error) {
	if !r.Date.IsZero() {
		return r.Date, r.Circa, nil
	}
	if r.Earliest.IsZero() && r.Latest.IsZero() {
		return model.Date{}, false, nil
	}

	if r.Or {
		ok, err := r.Latest.Follows(r.Earliest)
		if err != nil {
			return model.Date{}, false, err
		}
		if !ok {
			return model.Date{}, false, model.Invalidf("unexpected or date: %s or %s", r.Earliest, r.Latest)
		}
	}

	earliest, latest := r.Earliest, r.Latest
	circa := r.Circa
	bothStated := !earliest.IsZero() && !latest.IsZero()

	if bothStated {
		// A full civil year stated as bounds is just that year.
		if earliest.IsFirstOfJanuary() && latest.IsLastOfDecember() && earliest.Year == latest.Year {
			earliest = earliest.ToYearPrecision()
			latest = latest.ToYearPrecision()
		}
		if model.DatesEqual(earliest, latest, true) {
			return earliest, circa, nil
		}
	}

	// Fill the open end from the other vital event: a death is no earlier
	// than the birth and no later than birth plus a long life, and the other
	// way round for a birth. Without a vital estimate, fall back on the span
	// of years the person is known to have been alive, since any dated fact
	// bounds the lifetime the same way.
	if latest.IsZero() {
		var year int
		if ev == Death {
			if low, _ := p.BirthYears(); low > 0 {
				year = low + MaxExpectedLifeSpan
				circa = circa || p.BirthCirca()
			} else if low, _ := p.AliveYears(); low > 0 {
				year = low + MaxExpectedLifeSpan
				circa = circa || p.AliveCirca()
			}
		} else {
			if low, _ := p.DeathYears(); low > 0 {
				year = low
				circa = circa || p.DeathCirca()
			} else if low, _ := p.AliveYears(); low > 0 {
				year = low
				circa = circa || p.AliveCirca()
			}
		}
		if year == 0 {
			return model.Date{}, false, nil
		}
		latest = model.Date{Year: year, Precision: model.PrecisionYear}
	}
	if earliest.IsZero() {
		var year int
		if ev == Death {
			if _, high := p.BirthYears(); high > 0 {
				year = high
				circa = circa || p.BirthCirca()
			} else if _, high := p.AliveYears(); high > 0 {
				year = high
				circa = circa || p.AliveCirca()
			}
		} else {
			if _, high := p.DeathYears(); high > 0 {
				year = high - MaxExpectedLifeSpan
				circa = circa || p.DeathCirca()
			} else if _, high := p.AliveYears(); high > 0 {
				year = high - MaxExpectedLifeSpan
				circa = circa || p.AliveCirca()
			}
		}
		if year == 0 {
			return model.Date{}, false, nil
		}
		earliest = model.Date{Year: year, Precision: model.PrecisionYear}
	}

	mid, err := model.Middle(earliest, latest, !bothStated)
	if err != nil {
		return model.Date{}, false, err
	}
	return mid, circa, nil
}

// Statement builds the vital date statement for the record, or nil when the
// record gives nothing usable. The resolved year feeds the page's lifetime
// estimate immediately, so sibling facts built afterwards can resolve their
// own open ranges against it.
func (r RecordDate) Statement(p *Page, ev Event, proxy bool) (*DateStatement, error) {
	d, circa, err := r.Resolve(p, ev)
	if err != nil || d.IsZero() {
		return nil, err
	}
	if d.Precision >= model.PrecisionYear {
		if ev == Birth {
			p.AddBirthYear(d.Year, circa)
		} else {
			p.AddDeathYear(d.Year, circa)
		}
	}
	st := &DateStatement{Event: ev, Proxy: proxy, Date: d, Circa: circa}
	if r.bounded() {
		st.Earliest = r.Earliest
		st.Latest = r.Latest
	}
	return st, nil
}

// bounded reports whether the record's range survives as earliest/latest
// qualifiers, i.e. the range did not collapse to a single date.
func (r RecordDate) bounded() bool {
	if !r.Date.IsZero() || r.Earliest.IsZero() || r.Latest.IsZero() {
		return r.Date.IsZero() && (!r.Earliest.IsZero() || !r.Latest.IsZero())
	}
	e, l := r.Earliest, r.Latest
	if e.IsFirstOfJanuary() && l.IsLastOfDecember() && e.Year == l.Year {
		e, l = e.ToYearPrecision(), l.ToYearPrecision()
	}
	return !model.DatesEqual(e, l, true)
}

// marriageDate attaches a wedding date to the matching spouse claim. Without
// a known spouse the action refuses when the item lists several candidate
// spouses, since the date could belong to any of the marriages.
type marriageDate struct {
	spouse string
	date   model.Date
	ref    reference.Reference
}

// AddMarriage queues a wedding date against the spouse claims.
func (p *Page) AddMarriage(spouseQID string, date model.Date, ref reference.Reference) {
	p.enqueue(&marriageDate{spouse: spouseQID, date: date, ref: ref})
}

func (m *marriageDate) Prepare(p *Page) error { return nil }

func (m *marriageDate) Apply(p *Page) error {
	if m.spouse != "" {
		st := NewItemStatement(model.PIDSpouse, m.spouse)
		st.StartDate = m.date
		a := &addStatement{st: st, ref: m.ref}
		if err := a.Prepare(p); err != nil {
			return err
		}
		return a.Apply(p)
	}

	var candidates []*model.Claim
	for _, c := range p.Claims(model.PIDSpouse) {
		if c.Rank == model.RankDeprecated || p.IsPossibly(c) {
			continue
		}
		candidates = append(candidates, c)
	}
	switch len(candidates) {
	case 0:
		p.logf("%s: no spouse on record, marriage date dropped", model.PIDSpouse)
		return nil
	case 1:
	default:
		return model.Ambiguousf("%d spouses listed, cannot tell which marriage the date belongs to",
			len(candidates))
	}

	c := candidates[0]
	if !m.date.IsZero() && !hasDateQualifier(c, model.PIDStartTime, m.date) {
		c.AddQualifier(model.PIDStartTime, model.TimeVal(m.date))
		p.ClaimChanged(c)
	}
	a := &addStatement{ref: m.ref}
	return a.attachReferenceCarried(p, c, false)
}

func (m *marriageDate) PostApply(p *Page) error { return nil }
