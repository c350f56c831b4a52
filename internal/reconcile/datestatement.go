package reconcile

import (
	"github.com/ppiankov/lineage/internal/model"
)

// Event distinguishes the two vital-date families. Baptism and burial are the
// proxy forms of the same events.
type Event int

const (
	Birth Event = iota
	Death
)

func (e Event) String() string {
	if e == Death {
		return "death"
	}
	return "birth"
}

// DateStatement is the desired state of one vital date claim.
type DateStatement struct {
	Event Event

	// Proxy marks a baptism or burial record standing in for the vital date.
	Proxy bool

	Date     model.Date
	Earliest model.Date
	Latest   model.Date
	Circa    bool

	IgnoreCalendarModel bool
	RequireUnreferenced bool
	OnlyChange          bool
}

// NewDateOfBirth builds a birth date statement.
func NewDateOfBirth(d model.Date, circa bool) *DateStatement {
	return &DateStatement{Event: Birth, Date: d, Circa: circa}
}

// NewDateOfDeath builds a death date statement.
func NewDateOfDeath(d model.Date, circa bool) *DateStatement {
	return &DateStatement{Event: Death, Date: d, Circa: circa}
}

// NewDateOfBaptism builds a baptism-as-birth proxy statement.
func NewDateOfBaptism(d model.Date, circa bool) *DateStatement {
	return &DateStatement{Event: Birth, Proxy: true, Date: d, Circa: circa}
}

// NewDateOfBurial builds a burial-as-death proxy statement.
func NewDateOfBurial(d model.Date, circa bool) *DateStatement {
	return &DateStatement{Event: Death, Proxy: true, Date: d, Circa: circa}
}

func (s *DateStatement) Property() string {
	switch {
	case s.Event == Birth && s.Proxy:
		return model.PIDDateOfBaptism
	case s.Event == Birth:
		return model.PIDDateOfBirth
	case s.Proxy:
		return model.PIDDateOfBurialOrCremation
	default:
		return model.PIDDateOfDeath
	}
}

func (s *DateStatement) CanApply(p *Page) (bool, error) {
	if s.Date.IsZero() && s.Earliest.IsZero() && s.Latest.IsZero() {
		return false, nil
	}
	return true, nil
}

func (s *DateStatement) CanAddClaim() bool { return !s.OnlyChange }

// dateQualifiers is the only qualifier shape a vital date claim may carry:
// an optional circa marker plus optional earliest/latest bounds. Anything
// else refuses reconciliation rather than guessing.
type dateQualifiers struct {
	circa    bool
	earliest model.Date
	latest   model.Date
}

func dateQualifiersFromClaim(c *model.Claim) (dateQualifiers, error) {
	var q dateQualifiers
	for pid := range c.Qualifiers {
		switch pid {
		case model.PIDNatureOfStatement, model.PIDSourcingCircumstances,
			model.PIDEarliestDate, model.PIDLatestDate:
		default:
			return q, model.Ambiguousf("unsupported qualifier %s on %s claim", pid, c.Property)
		}
	}
	for _, pid := range []string{model.PIDNatureOfStatement, model.PIDSourcingCircumstances} {
		for _, v := range c.Qualifiers[pid] {
			if v.Kind != model.KindItem || v.QID != model.QIDCirca {
				return q, model.Ambiguousf("unknown value %s for %s", v, pid)
			}
			q.circa = true
		}
	}
	parse := func(pid string) (model.Date, error) {
		vals := c.Qualifiers[pid]
		if len(vals) > 1 {
			return model.Date{}, model.Ambiguousf("multiple %s qualifiers", pid)
		}
		if len(vals) == 0 {
			return model.Date{}, nil
		}
		if vals[0].Kind != model.KindTime {
			return model.Date{}, model.Ambiguousf("non-date %s qualifier", pid)
		}
		return vals[0].Time, nil
	}
	var err error
	if q.earliest, err = parse(model.PIDEarliestDate); err != nil {
		return q, err
	}
	if q.latest, err = parse(model.PIDLatestDate); err != nil {
		return q, err
	}
	return q, nil
}

func (s *DateStatement) qualifiers() dateQualifiers {
	return dateQualifiers{circa: s.Circa, earliest: s.Earliest, latest: s.Latest}
}

func qualifiersEqual(a, b dateQualifiers, strict bool) bool {
	dateEq := func(x, y model.Date) bool {
		if x.IsZero() != y.IsZero() {
			return false
		}
		return x.IsZero() || model.DatesEqual(x, y, false)
	}
	if strict {
		return a.circa == b.circa && dateEq(a.earliest, b.earliest) && dateEq(a.latest, b.latest)
	}
	boundEq := func(x, y model.Date) bool {
		if x.IsZero() || y.IsZero() {
			return true
		}
		return model.DatesEqual(x, y, false)
	}
	return a.circa == b.circa && boundEq(a.earliest, b.earliest) && boundEq(a.latest, b.latest)
}

func (s *DateStatement) Matches(p *Page, c *model.Claim, strict bool) (bool, error) {
	if c.Value.Kind != model.KindTime {
		return false, nil
	}
	if strict {
		if !model.DatesEqual(s.Date, c.Value.Time, s.IgnoreCalendarModel) {
			return false, nil
		}
	} else {
		// A year claim and a day claim for the same year describe the same
		// event at different precision, so they reconcile into one claim.
		if !model.SameNormalizedDate(s.Date, c.Value.Time) {
			return false, nil
		}
	}
	if s.Circa != p.IsCirca(c) {
		return false, nil
	}
	if s.RequireUnreferenced && len(c.Sources) > 0 {
		return false, nil
	}
	claimQ, err := dateQualifiersFromClaim(c)
	if err != nil {
		return false, err
	}
	return qualifiersEqual(claimQ, s.qualifiers(), strict), nil
}

func (s *DateStatement) Update(p *Page, c *model.Claim) error {
	changed := false
	// Never trade a day-precision claim for a year: the more precise value
	// wins, whichever side it came from.
	if s.Date.Precision > c.Value.Time.Precision ||
		(s.Date.Precision == c.Value.Time.Precision && !model.DatesEqual(s.Date, c.Value.Time, false)) {
		c.Value = model.TimeVal(s.Date)
		changed = true
	}
	if s.Circa && !p.IsCirca(c) {
		c.AddQualifier(model.PIDSourcingCircumstances, model.ItemVal(model.QIDCirca))
		changed = true
	}
	bounds := []struct {
		pid string
		d   model.Date
	}{
		{model.PIDEarliestDate, s.Earliest},
		{model.PIDLatestDate, s.Latest},
	}
	for _, b := range bounds {
		if b.d.IsZero() || hasDateQualifier(c, b.pid, b.d) {
			continue
		}
		c.AddQualifier(b.pid, model.TimeVal(b.d))
		changed = true
	}
	if changed {
		p.ClaimChanged(c)
	}
	return nil
}

func hasDateQualifier(c *model.Claim, pid string, d model.Date) bool {
	for _, v := range c.Qualifiers[pid] {
		if v.Kind == model.KindTime && model.DatesEqual(v.Time, d, false) {
			return true
		}
	}
	return false
}

func (s *DateStatement) NewClaim(p *Page) (*model.Claim, error) {
	if s.Date.IsZero() {
		return nil, nil
	}
	if _, err := s.Date.TimeValue(); err != nil {
		return nil, err
	}
	c := model.NewClaim(s.Property(), model.TimeVal(s.Date))
	if s.Circa {
		c.AddQualifier(model.PIDSourcingCircumstances, model.ItemVal(model.QIDCirca))
	}
	if !s.Earliest.IsZero() {
		c.AddQualifier(model.PIDEarliestDate, model.TimeVal(s.Earliest))
	}
	if !s.Latest.IsZero() {
		c.AddQualifier(model.PIDLatestDate, model.TimeVal(s.Latest))
	}
	return c, nil
}

func (s *DateStatement) PostApply(p *Page) {
	if s.Date.IsZero() || s.Date.Precision < model.PrecisionYear {
		return
	}
	if s.Event == Birth {
		p.AddBirthYear(s.Date.Year, s.Circa)
	} else {
		p.AddDeathYear(s.Date.Year, s.Circa)
	}
}
