package reconcile

import (
	"github.com/ppiankov/lineage/internal/model"
)

// IDChecker verifies that an external identifier still resolves at its
// source database, following redirects to a replacement id when the record
// moved.
type IDChecker interface {
	CheckID(pid, id string) (ok bool, actual string, err error)
}

// ExternalIDStatement links the subject to a record in an external database.
type ExternalIDStatement struct {
	PID string
	ID  string

	// Checker, when set, validates the id before any claim is touched.
	Checker IDChecker
}

func NewExternalID(pid, id string) *ExternalIDStatement {
	return &ExternalIDStatement{PID: pid, ID: id}
}

func (s *ExternalIDStatement) Property() string { return s.PID }

func (s *ExternalIDStatement) CanApply(p *Page) (bool, error) {
	if s.ID == "" {
		return false, model.Invalidf("empty id for %s", s.PID)
	}
	if s.Checker == nil {
		return true, nil
	}
	ok, actual, err := s.Checker.CheckID(s.PID, s.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, model.Invalidf("%s id %s no longer resolves", s.PID, s.ID)
	}
	if actual != "" && actual != s.ID {
		p.logf("%s id %s redirects to %s", s.PID, s.ID, actual)
		s.ID = actual
	}
	return true, nil
}

func (s *ExternalIDStatement) CanAddClaim() bool { return true }

func (s *ExternalIDStatement) Matches(p *Page, c *model.Claim, strict bool) (bool, error) {
	switch c.Value.Kind {
	case model.KindExternalID, model.KindString:
		return c.Value.Str == s.ID, nil
	}
	return false, nil
}

func (s *ExternalIDStatement) Update(p *Page, c *model.Claim) error { return nil }

func (s *ExternalIDStatement) NewClaim(p *Page) (*model.Claim, error) {
	return model.NewClaim(s.PID, model.ExternalIDVal(s.ID)), nil
}

func (s *ExternalIDStatement) PostApply(p *Page) {}
