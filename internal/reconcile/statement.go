package reconcile

import (
	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reference"
)

// Statement is the desired end-state of one property value on one item. The
// reconciliation state machine in addStatement.Apply drives it against the
// item's existing claims.
type Statement interface {
	// Property returns the claim property the statement targets.
	Property() string

	// CanApply validates the statement against the page before anything
	// runs. Returning false skips the statement without error.
	CanApply(p *Page) (bool, error)

	// CanAddClaim reports whether a missing claim may be created.
	CanAddClaim() bool

	// Matches reports whether the statement describes the claim. Strict
	// mode requires the qualifier sets to agree exactly.
	Matches(p *Page, c *model.Claim, strict bool) (bool, error)

	// Update rewrites the claim's value and qualifiers to the desired
	// state.
	Update(p *Page, c *model.Claim) error

	// NewClaim builds a fresh claim carrying the desired value.
	NewClaim(p *Page) (*model.Claim, error)

	// PostApply runs after the whole page applied, for side effects such as
	// the birth/death year estimate.
	PostApply(p *Page)
}

// addStatement runs the three-branch reconciliation for one statement.
type addStatement struct {
	st     Statement
	ref    reference.Reference
	opts   Options
	ignore bool
}

func (a *addStatement) Prepare(p *Page) error {
	ok, err := a.st.CanApply(p)
	if err != nil {
		return err
	}
	a.ignore = !ok
	return nil
}

func (a *addStatement) Apply(p *Page) error {
	if a.ignore {
		return nil
	}
	pid := a.st.Property()

	// 1. Exact match: attach the reference, nothing else moves.
	for _, c := range p.Claims(pid) {
		match, err := a.st.Matches(p, c, true)
		if err != nil {
			return err
		}
		if !match {
			continue
		}
		if c.Rank == model.RankDeprecated {
			return model.Preconditionf("%s: matching claim is deprecated", pid)
		}
		a.stripWeakIfSuperseded(p, c)
		return a.attachReference(p, c, false)
	}

	// 2. Loose match: rewrite the claim to the desired state, carrying the
	// reference over from the old value.
	for _, c := range p.Claims(pid) {
		match, err := a.st.Matches(p, c, false)
		if err != nil {
			return err
		}
		if !match {
			continue
		}
		if c.Rank == model.RankDeprecated {
			return model.Preconditionf("%s: loosely matching claim is deprecated", pid)
		}
		a.stripWeakIfSuperseded(p, c)

		carried := false
		if a.ref != nil && reference.OnClaim(a.ref, c) {
			a.deleteReference(p, c, true)
			carried = true
		}
		p.logf("%s: statement changed", pid)
		if err := a.st.Update(p, c); err != nil {
			return err
		}
		return a.attachReferenceCarried(p, c, carried)
	}

	// 3. No match: add a new claim.
	if !a.st.CanAddClaim() {
		return nil
	}
	if a.opts.RemoveOldClaims && a.ref != nil {
		for _, c := range p.Claims(pid) {
			a.deleteReference(p, c, false)
		}
	}
	c, err := a.st.NewClaim(p)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	p.logf("%s: statement added", pid)
	p.AddClaim(pid, c)
	return a.attachReference(p, c, false)
}

func (a *addStatement) PostApply(p *Page) error {
	if !a.ignore {
		a.st.PostApply(p)
	}
	return nil
}

// stripWeakIfSuperseded drops weak sources once a strong reference arrives or
// the claim already holds one.
func (a *addStatement) stripWeakIfSuperseded(p *Page, c *model.Claim) {
	strongIncoming := a.ref != nil && a.ref.Strong()
	if !strongIncoming && !reference.HasStrongSource(c) {
		return
	}
	if n := reference.StripWeakSources(c); n > 0 {
		p.logf("%s: %d weak source(s) removed", c.Property, n)
		for i := 0; i < n; i++ {
			p.ReferenceDeleted(c)
		}
	}
}

func (a *addStatement) attachReference(p *Page, c *model.Claim, asUpdate bool) error {
	return a.attachReferenceCarried(p, c, asUpdate)
}

func (a *addStatement) attachReferenceCarried(p *Page, c *model.Claim, carried bool) error {
	if a.ref == nil {
		return nil
	}
	if reference.OnClaim(a.ref, c) {
		p.logf("%s: reference already present", c.Property)
		return nil
	}
	if a.opts.SkipIfStrongRefs && reference.HasStrongSource(c) {
		p.logf("%s: strong reference present, skipping", c.Property)
		return nil
	}
	c.Sources = append(c.Sources, a.ref.NewSource())
	if carried {
		p.ReferenceUpdated(c)
	} else {
		p.logf("%s: reference added", c.Property)
		p.ReferenceAdded(c)
	}
	return nil
}

func (a *addStatement) deleteReference(p *Page, c *model.Claim, isUpdate bool) {
	if a.ref == nil {
		return
	}
	kept := c.Sources[:0]
	found := false
	for _, src := range c.Sources {
		if a.ref.MatchesSource(src) {
			found = true
			continue
		}
		kept = append(kept, src)
	}
	if found {
		c.Sources = kept
		if !isUpdate {
			p.ReferenceDeleted(c)
		}
	}
}

// removeReferences strips one reference from every claim under a property.
type removeReferences struct {
	pid string
	ref reference.Reference
}

func (r *removeReferences) Prepare(p *Page) error { return nil }

func (r *removeReferences) Apply(p *Page) error {
	for _, c := range p.Claims(r.pid) {
		kept := c.Sources[:0]
		found := false
		for _, src := range c.Sources {
			if r.ref.MatchesSource(src) {
				found = true
				continue
			}
			kept = append(kept, src)
		}
		if found {
			c.Sources = kept
			p.ReferenceDeleted(c)
		}
	}
	return nil
}

func (r *removeReferences) PostApply(p *Page) error { return nil }

// addLabel adds a label when the language has none, otherwise an alias when
// the text is new.
type addLabel struct {
	language string
	text     string
}

func (l *addLabel) Prepare(p *Page) error { return nil }

func (l *addLabel) Apply(p *Page) error {
	if !p.HasLanguageLabel(l.language) {
		p.logf("label added: %s (%s)", l.text, l.language)
		p.SaveLabel(l.language, l.text)
		return nil
	}
	if p.HasLabel(l.language, l.text) {
		return nil
	}
	if !p.HasAlias(l.language, l.text) {
		p.logf("alias added: %s (%s)", l.text, l.language)
		p.SaveAlias(l.language, l.text)
	}
	return nil
}

func (l *addLabel) PostApply(p *Page) error { return nil }
