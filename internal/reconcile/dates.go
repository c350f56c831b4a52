package reconcile

import (
	"sort"

	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reference"
)

// dateGroup collects claims whose dates agree once truncated to their common
// precision: 1660, 1660-04 and 1660-04-12 all land in one group.
type dateGroup struct {
	claims []*model.Claim
}

// best returns the group's most precise claim, preferring the better sourced
// one when precision ties.
func (g *dateGroup) best() *model.Claim {
	out := g.claims[0]
	for _, c := range g.claims[1:] {
		switch {
		case c.Value.Time.Precision > out.Value.Time.Precision:
			out = c
		case c.Value.Time.Precision == out.Value.Time.Precision &&
			!reference.HasStrongSource(out) && reference.HasStrongSource(c):
			out = c
		}
	}
	return out
}

// groupDates partitions rank-filtered date claims by normalized date,
// seeding groups from the most precise claims so a year claim joins the
// matching day claim and not the other way round.
func groupDates(claims []*model.Claim) ([]*dateGroup, error) {
	var dated []*model.Claim
	for _, c := range claims {
		if c.Value.Kind != model.KindTime {
			return nil, model.Invalidf("%s: non-date value %s", c.Property, c.Value)
		}
		if c.Value.Time.Precision > model.PrecisionDay {
			return nil, model.Invalidf("%s: unsupported precision %d", c.Property, c.Value.Time.Precision)
		}
		dated = append(dated, c)
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].Value.Time.Precision > dated[j].Value.Time.Precision
	})

	var groups []*dateGroup
next:
	for _, c := range dated {
		for _, g := range groups {
			if model.SameNormalizedDate(g.best().Value.Time, c.Value.Time) {
				g.claims = append(g.claims, c)
				continue next
			}
		}
		groups = append(groups, &dateGroup{claims: []*model.Claim{c}})
	}
	return groups, nil
}

func hasPreferred(claims []*model.Claim) bool {
	for _, c := range claims {
		if c.Rank == model.RankPreferred {
			return true
		}
	}
	return false
}

func preferClaim(p *Page, c *model.Claim, reasonQID string) {
	c.Rank = model.RankPreferred
	c.AddQualifier(model.PIDReasonForPreferred, model.ItemVal(reasonQID))
	p.logf("%s: claim set to preferred (%s)", c.Property, reasonQID)
	p.ClaimChanged(c)
}

// CheckDateStatements promotes the most precise date to preferred rank when
// all dates of a property agree. Qualified claims in the group and unsourced
// candidates block the promotion. Grouping failures are logged and skipped so
// one messy item does not stop a batch.
type CheckDateStatements struct {
	PID string
}

func (a *CheckDateStatements) Prepare(p *Page) error { return nil }

func (a *CheckDateStatements) Apply(p *Page) error {
	claims := model.FilterClaimsByRank(p.Claims(a.PID))
	if len(claims) < 2 || hasPreferred(claims) {
		return nil
	}
	groups, err := groupDates(claims)
	if err != nil {
		p.logf("%s: %v", a.PID, err)
		return nil
	}
	if len(groups) != 1 {
		return nil
	}
	for _, c := range groups[0].claims {
		if c.HasQualifiers() {
			p.logf("%s: qualified claim in the group, no promotion", a.PID)
			return nil
		}
	}
	best := groups[0].best()
	if !best.IsSourced() {
		p.logf("%s: best candidate has no source, no promotion", a.PID)
		return nil
	}
	preferClaim(p, best, model.QIDMostPreciseValue)
	return nil
}

func (a *CheckDateStatements) PostApply(p *Page) error { return nil }

// PrefDateStatements resolves disagreeing date groups by source authority:
// the first reference in the priority list that is carried by exactly one
// group wins, and that group's most precise claim becomes preferred.
type PrefDateStatements struct {
	PID      string
	Priority []reference.Reference
}

func (a *PrefDateStatements) Prepare(p *Page) error { return nil }

func (a *PrefDateStatements) Apply(p *Page) error {
	claims := model.FilterClaimsByRank(p.Claims(a.PID))
	if len(claims) < 2 || hasPreferred(claims) {
		return nil
	}
	groups, err := groupDates(claims)
	if err != nil {
		p.logf("%s: %v", a.PID, err)
		return nil
	}
	if len(groups) < 2 {
		return nil
	}
	for _, ref := range a.Priority {
		var matched []*dateGroup
		for _, g := range groups {
			for _, c := range g.claims {
				if reference.OnClaim(ref, c) {
					matched = append(matched, g)
					break
				}
			}
		}
		switch len(matched) {
		case 0:
			continue
		case 1:
			preferClaim(p, matched[0].best(), model.QIDBestReferenced)
			return nil
		default:
			// The reference backs more than one date: no winner.
			return nil
		}
	}
	return nil
}

func (a *PrefDateStatements) PostApply(p *Page) error { return nil }

// DeprecateDate demotes real vital date claims that merely copy a baptism or
// burial date. A year-precision stand-in is added when no usable claim
// survives.
type DeprecateDate struct {
	PID  string
	Date model.Date
}

func (a *DeprecateDate) reason() string {
	if a.PID == model.PIDDateOfDeath {
		return model.QIDBurialAsDeathDate
	}
	return model.QIDBaptismAsBirthDate
}

func (a *DeprecateDate) Prepare(p *Page) error {
	if a.Date.IsZero() || a.Date.Precision < model.PrecisionYear {
		return nil
	}
	// A day in the first days of January often is a year-only date that
	// picked up a bogus day on import. Deprecating against it would hit the
	// wrong claims.
	if a.Date.Precision == model.PrecisionDay && a.Date.Month == 1 && a.Date.Day <= 9 {
		return model.Ambiguousf("%s: %s looks like a mis-parsed year-only date", a.PID, a.Date)
	}
	return nil
}

func (a *DeprecateDate) Apply(p *Page) error {
	if a.Date.IsZero() || a.Date.Precision < model.PrecisionYear {
		return nil
	}
	var demoted bool
	survivors := 0
	for _, c := range p.Claims(a.PID) {
		if c.Rank == model.RankDeprecated || c.Value.Kind != model.KindTime {
			continue
		}
		d := c.Value.Time
		if d.Precision == a.Date.Precision && model.DatesEqual(d, a.Date, true) {
			c.Rank = model.RankDeprecated
			c.AddQualifier(model.PIDReasonForDeprecation, model.ItemVal(a.reason()))
			p.logf("%s: claim deprecated, copies the %s date", a.PID, a.Date)
			p.ClaimChanged(c)
			demoted = true
			continue
		}
		survivors++
	}
	if !demoted || survivors > 0 {
		return nil
	}
	year := model.Date{Year: a.Date.Year, Precision: model.PrecisionYear}
	c := model.NewClaim(a.PID, model.TimeVal(year))
	c.AddQualifier(model.PIDSourcingCircumstances, model.ItemVal(model.QIDCirca))
	c.Sources = append(c.Sources, reference.Heuristic{}.NewSource())
	p.logf("%s: year stand-in %d added", a.PID, a.Date.Year)
	p.AddClaim(a.PID, c)
	return nil
}

func (a *DeprecateDate) PostApply(p *Page) error { return nil }
