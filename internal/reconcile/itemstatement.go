package reconcile

import (
	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/qualifier"
)

// ItemStatement is the desired state of one item-valued claim, such as a
// place of birth or a family relation.
type ItemStatement struct {
	PID string
	QID string

	// QIDAlternative widens loose matching to equivalent items, e.g. a
	// settlement versus its municipality.
	QIDAlternative []string

	StartDate      model.Date
	EndDate        model.Date
	SubjectNamedAs string
	Volume         string
	Pages          string
	URL            string

	// Possibly marks the record's own uncertainty about the relation. A
	// tentative statement carries the marker and may match a claim that
	// already has one; a confident statement refuses such a claim.
	Possibly bool

	OnlyChange bool
}

func NewItemStatement(pid, qid string) *ItemStatement {
	return &ItemStatement{PID: pid, QID: qid}
}

func NewPlaceOfBirth(qid string) *ItemStatement { return NewItemStatement(model.PIDPlaceOfBirth, qid) }
func NewPlaceOfDeath(qid string) *ItemStatement { return NewItemStatement(model.PIDPlaceOfDeath, qid) }
func NewSexOrGender(qid string) *ItemStatement  { return NewItemStatement(model.PIDSexOrGender, qid) }
func NewFather(qid string) *ItemStatement       { return NewItemStatement(model.PIDFather, qid) }
func NewMother(qid string) *ItemStatement       { return NewItemStatement(model.PIDMother, qid) }
func NewChild(qid string) *ItemStatement        { return NewItemStatement(model.PIDChild, qid) }
func NewOccupation(qid string) *ItemStatement   { return NewItemStatement(model.PIDOccupation, qid) }
func NewResidence(qid string) *ItemStatement    { return NewItemStatement(model.PIDResidence, qid) }
func NewWorkLocation(qid string) *ItemStatement {
	return NewItemStatement(model.PIDWorkLocation, qid)
}
func NewMemberOf(qid string) *ItemStatement { return NewItemStatement(model.PIDMemberOf, qid) }
func NewReligion(qid string) *ItemStatement { return NewItemStatement(model.PIDReligion, qid) }
func NewGenre(qid string) *ItemStatement    { return NewItemStatement(model.PIDGenre, qid) }

func (s *ItemStatement) Property() string { return s.PID }

func (s *ItemStatement) CanApply(p *Page) (bool, error) {
	if !model.IsQID(s.QID) {
		return false, model.Invalidf("item statement %s: bad target %q", s.PID, s.QID)
	}
	return true, nil
}

func (s *ItemStatement) CanAddClaim() bool { return !s.OnlyChange }

func (s *ItemStatement) handler() (*qualifier.Handler, error) {
	h := qualifier.New()
	if !s.StartDate.IsZero() {
		if err := h.AddDate(model.PIDStartTime, s.StartDate); err != nil {
			return nil, err
		}
	}
	if !s.EndDate.IsZero() {
		if err := h.AddDate(model.PIDEndTime, s.EndDate); err != nil {
			return nil, err
		}
	}
	if s.SubjectNamedAs != "" {
		if err := h.AddString(model.PIDSubjectNamedAs, s.SubjectNamedAs); err != nil {
			return nil, err
		}
	}
	if s.Volume != "" {
		if err := h.AddString(model.PIDVolume, s.Volume); err != nil {
			return nil, err
		}
	}
	if s.Pages != "" {
		if err := h.AddString(model.PIDPages, s.Pages); err != nil {
			return nil, err
		}
	}
	if s.URL != "" {
		if err := h.AddString(model.PIDURL, s.URL); err != nil {
			return nil, err
		}
	}
	if s.Possibly {
		if err := h.AddQID(model.QIDPossibly, ""); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (s *ItemStatement) targetMatches(qid string, strict bool) bool {
	if qid == s.QID {
		return true
	}
	if strict {
		return false
	}
	for _, alt := range s.QIDAlternative {
		if qid == alt {
			return true
		}
	}
	return false
}

func (s *ItemStatement) Matches(p *Page, c *model.Claim, strict bool) (bool, error) {
	if c.Value.Kind != model.KindItem || !s.targetMatches(c.Value.QID, strict) {
		return false, nil
	}
	want, err := s.handler()
	if err != nil {
		return false, err
	}
	if p.IsPossibly(c) && !want.HasQID(model.QIDPossibly) {
		return false, model.Ambiguousf("%s claim for %s carries a possibly qualifier, needs manual review",
			s.PID, c.Value.QID)
	}
	return qualifier.FromClaim(c).IsEqual(want, strict), nil
}

func (s *ItemStatement) Update(p *Page, c *model.Claim) error {
	c.Value = model.ItemVal(s.QID)
	want, err := s.handler()
	if err != nil {
		return err
	}
	have := qualifier.FromClaim(c)
	res := have.Merge(want)
	for _, note := range res.Notes {
		p.logf("%s: %s", s.PID, note)
	}
	if res.Changed {
		have.ApplyTo(c)
	}
	p.ClaimChanged(c)
	return nil
}

func (s *ItemStatement) NewClaim(p *Page) (*model.Claim, error) {
	c := model.NewClaim(s.PID, model.ItemVal(s.QID))
	h, err := s.handler()
	if err != nil {
		return nil, err
	}
	h.ApplyTo(c)
	return c, nil
}

func (s *ItemStatement) PostApply(p *Page) {}
