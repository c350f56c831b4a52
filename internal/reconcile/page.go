// Package reconcile decides, for an incoming fact with a provenance
// reference, whether to add a claim, attach a reference, rewrite qualifiers,
// deprecate a conflicting claim, or leave the item untouched.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/reference"
)

// Action is one queued mutation against a page. All actions run through the
// three phases in order before the diff is computed.
type Action interface {
	Prepare(p *Page) error
	Apply(p *Page) error
	PostApply(p *Page) error
}

// Edit is the JSON patch produced by one page application: the argument to a
// single wbeditentity call.
type Edit struct {
	Labels       map[string]string
	Descriptions map[string]string
	Aliases      map[string][]string
	Claims       []json.RawMessage
	Summary      string
}

// IsEmpty reports whether the edit would change nothing.
func (e *Edit) IsEmpty() bool {
	return len(e.Labels) == 0 && len(e.Descriptions) == 0 &&
		len(e.Aliases) == 0 && len(e.Claims) == 0
}

// Page owns one item's claim set for the duration of one reconciliation run.
// All mutation happens in local memory; nothing persists until the caller
// submits the Edit returned by Apply.
type Page struct {
	Entity  *model.Entity
	Test    bool
	Verbose bool
	Summary string

	// Out receives the per-statement console trace.
	Out io.Writer

	actions []Action

	added      map[*model.Claim]bool
	changed    map[*model.Claim]bool
	refChanged map[*model.Claim]bool
	deleted    []string

	refsAdded   int
	refsUpdated int
	refsDeleted int

	newLabels       map[string]string
	newDescriptions map[string]string
	newAliases      map[string][]string

	birthYearLow, birthYearHigh int
	deathYearLow, deathYearHigh int
	aliveYearLow, aliveYearHigh int
	birthCirca, deathCirca      bool
	aliveCirca                  bool
}

// NewPage wraps a loaded entity after checking the mandatory edit guards.
func NewPage(e *model.Entity, test bool) (*Page, error) {
	if e == nil || e.Missing {
		return nil, model.Preconditionf("item does not exist")
	}
	if !model.IsQID(e.QID) {
		return nil, model.Preconditionf("skipping %s: not an item page", e.QID)
	}
	if e.Redirect {
		return nil, model.Preconditionf("skipping %s: redirect", e.QID)
	}
	if !e.BotEditable {
		return nil, model.Preconditionf("skipping %s: not bot editable", e.QID)
	}
	return &Page{
		Entity:          e,
		Test:            test,
		Out:             os.Stderr,
		added:           map[*model.Claim]bool{},
		changed:         map[*model.Claim]bool{},
		refChanged:      map[*model.Claim]bool{},
		newLabels:       map[string]string{},
		newDescriptions: map[string]string{},
		newAliases:      map[string][]string{},
	}, nil
}

func (p *Page) logf(format string, args ...interface{}) {
	if p.Verbose && p.Out != nil {
		fmt.Fprintf(p.Out, format+"\n", args...)
	}
}

// Claims returns the working claim list for a property.
func (p *Page) Claims(pid string) []*model.Claim {
	return p.Entity.Claims[pid]
}

// HasProperty reports whether the item carries any claim for pid.
func (p *Page) HasProperty(pid string) bool {
	return len(p.Entity.Claims[pid]) > 0
}

// QIDs returns the non-deprecated item values under pid.
func (p *Page) QIDs(pid string) map[string]bool {
	out := map[string]bool{}
	for _, c := range p.Entity.Claims[pid] {
		if c.Rank == model.RankDeprecated {
			continue
		}
		if c.Value.Kind == model.KindItem {
			out[c.Value.QID] = true
		}
	}
	return out
}

// IsCirca reports whether the claim is marked approximate.
func (p *Page) IsCirca(c *model.Claim) bool {
	return c.HasQualifier(model.PIDSourcingCircumstances, model.QIDCirca) ||
		c.HasQualifier(model.PIDNatureOfStatement, model.QIDCirca)
}

// IsPossibly reports whether the claim is marked as a possible match.
func (p *Page) IsPossibly(c *model.Claim) bool {
	return c.HasQualifier(model.PIDSourcingCircumstances, model.QIDPossibly) ||
		c.HasQualifier(model.PIDNatureOfStatement, model.QIDPossibly)
}

// --- change bookkeeping ---

// AddClaim inserts a brand-new claim into the working set and records it as
// added. A claim that is added and later modified stays "added".
func (p *Page) AddClaim(pid string, c *model.Claim) {
	if p.Entity.Claims == nil {
		p.Entity.Claims = map[string][]*model.Claim{}
	}
	p.Entity.Claims[pid] = append(p.Entity.Claims[pid], c)
	p.added[c] = true
}

// ClaimChanged records a modification to an existing claim.
func (p *Page) ClaimChanged(c *model.Claim) {
	if !p.added[c] {
		p.changed[c] = true
	}
}

// ReferenceAdded records a newly attached source on a claim.
func (p *Page) ReferenceAdded(c *model.Claim) {
	p.refChanged[c] = true
	p.refsAdded++
}

// ReferenceUpdated records a source that was detached and reattached.
func (p *Page) ReferenceUpdated(c *model.Claim) {
	p.refChanged[c] = true
	p.refsUpdated++
}

// ReferenceDeleted records a removed source.
func (p *Page) ReferenceDeleted(c *model.Claim) {
	p.refChanged[c] = true
	p.refsDeleted++
}

// SaveLabel stages a label write.
func (p *Page) SaveLabel(language, text string) {
	p.newLabels[language] = text
}

// SaveDescription stages a description write.
func (p *Page) SaveDescription(language, text string) {
	p.newDescriptions[language] = text
}

// SaveAlias stages an alias addition.
func (p *Page) SaveAlias(language, text string) {
	p.newAliases[language] = append(p.newAliases[language], text)
}

// HasLanguageLabel reports whether any label exists for the language, staged
// or already on the item.
func (p *Page) HasLanguageLabel(language string) bool {
	if _, ok := p.newLabels[language]; ok {
		return true
	}
	_, ok := p.Entity.Labels[language]
	return ok
}

// HasLabel reports whether the exact label is present, staged or persisted.
func (p *Page) HasLabel(language, text string) bool {
	if v, ok := p.newLabels[language]; ok && v == text {
		return true
	}
	return p.Entity.Labels[language] == text
}

// HasAlias reports whether the alias is present, staged or persisted.
func (p *Page) HasAlias(language, text string) bool {
	for _, v := range p.newAliases[language] {
		if v == text {
			return true
		}
	}
	for _, v := range p.Entity.Aliases[language] {
		if v == text {
			return true
		}
	}
	return false
}

// DeprecateLabel replaces a problematic label and keeps the old text findable
// as an alias.
func (p *Page) DeprecateLabel(language, oldText, newText string) {
	p.SaveLabel(language, newText)
	if !p.HasAlias(language, oldText) {
		p.SaveAlias(language, oldText)
	}
}

// --- birth/death year estimate ---

// AddBirthYear widens the running birth-year estimate.
func (p *Page) AddBirthYear(year int, circa bool) {
	if p.birthYearLow == 0 || p.birthYearLow > year {
		p.birthYearLow = year
	}
	if p.birthYearHigh == 0 || p.birthYearHigh < year {
		p.birthYearHigh = year
	}
	p.birthCirca = p.birthCirca || circa
	p.AddAliveYear(year, circa)
}

// AddDeathYear widens the running death-year estimate.
func (p *Page) AddDeathYear(year int, circa bool) {
	if p.deathYearLow == 0 || p.deathYearLow > year {
		p.deathYearLow = year
	}
	if p.deathYearHigh == 0 || p.deathYearHigh < year {
		p.deathYearHigh = year
	}
	p.deathCirca = p.deathCirca || circa
	p.AddAliveYear(year, circa)
}

// AddAliveYear widens the span of years the person is known to have been
// alive. Any dated fact about the person feeds it: occupations, marriages,
// memberships, as well as the vital dates themselves.
func (p *Page) AddAliveYear(year int, circa bool) {
	if year == 0 {
		return
	}
	if p.aliveYearLow == 0 || p.aliveYearLow > year {
		p.aliveYearLow = year
	}
	if p.aliveYearHigh == 0 || p.aliveYearHigh < year {
		p.aliveYearHigh = year
	}
	p.aliveCirca = p.aliveCirca || circa
}

// BirthYears returns the current birth-year estimate (low, high; 0 = unknown).
func (p *Page) BirthYears() (int, int) { return p.birthYearLow, p.birthYearHigh }

// DeathYears returns the current death-year estimate.
func (p *Page) DeathYears() (int, int) { return p.deathYearLow, p.deathYearHigh }

// BirthCirca reports whether any approximate date fed the birth estimate.
func (p *Page) BirthCirca() bool { return p.birthCirca }

// DeathCirca reports whether any approximate date fed the death estimate.
func (p *Page) DeathCirca() bool { return p.deathCirca }

// AliveYears returns the span of years the person is known to have been
// alive (low, high; 0 = unknown).
func (p *Page) AliveYears() (int, int) { return p.aliveYearLow, p.aliveYearHigh }

// AliveCirca reports whether any approximate date fed the alive span.
func (p *Page) AliveCirca() bool { return p.aliveCirca }

// DetermineBirthDeath seeds the year estimates from the item's existing vital
// date claims.
func (p *Page) DetermineBirthDeath() {
	mappings := []struct {
		pid string
		add func(int, bool)
	}{
		{model.PIDDateOfBirth, p.AddBirthYear},
		{model.PIDDateOfBaptism, p.AddBirthYear},
		{model.PIDDateOfDeath, p.AddDeathYear},
		{model.PIDDateOfBurialOrCremation, p.AddDeathYear},
	}
	for _, m := range mappings {
		for _, c := range p.Entity.Claims[m.pid] {
			if c.Rank == model.RankDeprecated {
				continue
			}
			if c.Value.Kind == model.KindTime && c.Value.Time.Precision >= model.PrecisionYear {
				m.add(c.Value.Time.Year, p.IsCirca(c))
			}
		}
	}
}

// --- action queueing ---

func (p *Page) enqueue(a Action) {
	p.actions = append(p.actions, a)
}

// AddStatement queues a statement for reconciliation. A baptism or burial
// proxy date also queues deprecation of the matching real vital date.
func (p *Page) AddStatement(st Statement, ref reference.Reference) {
	p.AddStatementOpts(st, ref, Options{})
}

// Options carries the action-level reconciliation policy flags.
type Options struct {
	// RemoveOldClaims strips this reference from every existing claim under
	// the property before adding, so a superseding fact does not leave the
	// reference on a stale value.
	RemoveOldClaims bool

	// SkipIfStrongRefs leaves a claim alone when it already carries a strong
	// source.
	SkipIfStrongRefs bool
}

// AddStatementOpts queues a statement with explicit policy flags.
func (p *Page) AddStatementOpts(st Statement, ref reference.Reference, opts Options) {
	p.enqueue(&addStatement{st: st, ref: ref, opts: opts})
	if ds, ok := st.(*DateStatement); ok && ds.Proxy && !ds.Date.IsZero() {
		if ref != nil {
			p.enqueue(&removeReferences{pid: realVitalPID(ds.Event), ref: ref})
		}
		p.enqueue(&DeprecateDate{PID: realVitalPID(ds.Event), Date: ds.Date})
	}
}

// RemoveReferences queues removal of a reference from all claims of a
// property.
func (p *Page) RemoveReferences(pid string, ref reference.Reference) {
	p.enqueue(&removeReferences{pid: pid, ref: ref})
}

// AddLabel queues a label-or-alias addition.
func (p *Page) AddLabel(language, text string) {
	p.enqueue(&addLabel{language: language, text: text})
}

// CheckDates queues the single-group preferred-rank pass over all four vital
// date properties.
func (p *Page) CheckDates() {
	for _, pid := range []string{
		model.PIDDateOfBirth,
		model.PIDDateOfBurialOrCremation,
		model.PIDDateOfDeath,
		model.PIDDateOfBaptism,
	} {
		p.enqueue(&CheckDateStatements{PID: pid})
	}
}

// PreferDates queues the reference-priority preferred-rank pass.
func (p *Page) PreferDates(priority []reference.Reference) {
	for _, pid := range []string{
		model.PIDDateOfBirth,
		model.PIDDateOfBurialOrCremation,
		model.PIDDateOfDeath,
		model.PIDDateOfBaptism,
	} {
		p.enqueue(&PrefDateStatements{PID: pid, Priority: priority})
	}
}

// descriptionSpan matches the year span at the end of a biographical
// description, e.g. "Dutch painter (1600-1660)".
var descriptionSpan = regexp.MustCompile(`\((\d{3,4})?[-–](\d{3,4})?\)`)

// RecomputeDescriptions rewrites the year span inside existing descriptions
// from the current birth/death estimate. Descriptions without a span are left
// alone.
func (p *Page) RecomputeDescriptions() {
	bLow, bHigh := p.BirthYears()
	dLow, dHigh := p.DeathYears()
	if bLow == 0 && dLow == 0 {
		return
	}
	span := "("
	if bLow > 0 {
		if bLow == bHigh {
			span += fmt.Sprintf("%d", bLow)
		} else {
			span += fmt.Sprintf("%d/%d", bLow, bHigh)
		}
	}
	span += "-"
	if dLow > 0 {
		if dLow == dHigh {
			span += fmt.Sprintf("%d", dLow)
		} else {
			span += fmt.Sprintf("%d/%d", dLow, dHigh)
		}
	}
	span += ")"
	for lang, text := range p.Entity.Descriptions {
		if !descriptionSpan.MatchString(text) {
			continue
		}
		updated := descriptionSpan.ReplaceAllString(text, span)
		if updated != text {
			p.logf("description span updated (%s): %s", lang, updated)
			p.SaveDescription(lang, updated)
		}
	}
}

// Sink submits one entity edit.
type Sink interface {
	EditEntity(ctx context.Context, qid string, edit *Edit) error
}

// Commit applies all queued actions and submits the resulting edit, if any,
// through the sink. It returns the edit summary, empty when nothing changed.
// Test mode prints the would-be edit instead of submitting.
func (p *Page) Commit(ctx context.Context, sink Sink) (string, error) {
	edit, err := p.Apply()
	if err != nil {
		return "", err
	}
	if edit == nil {
		return "", nil
	}
	if p.Test {
		raw, err := json.MarshalIndent(edit, "", "  ")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(p.Out, "%s would get: %s\n", p.Entity.QID, raw)
		return edit.Summary, nil
	}
	if err := sink.EditEntity(ctx, p.Entity.QID, edit); err != nil {
		return "", err
	}
	return edit.Summary, nil
}

// Apply runs all queued actions through the three phases and computes the
// resulting edit. A nil edit means nothing changed.
func (p *Page) Apply() (*Edit, error) {
	for _, a := range p.actions {
		if err := a.Prepare(p); err != nil {
			return nil, err
		}
	}
	for _, a := range p.actions {
		if err := a.Apply(p); err != nil {
			return nil, err
		}
	}
	for _, a := range p.actions {
		if err := a.PostApply(p); err != nil {
			return nil, err
		}
	}
	p.RecomputeDescriptions()
	return p.buildEdit()
}

func (p *Page) buildEdit() (*Edit, error) {
	edit := &Edit{
		Labels:       p.newLabels,
		Descriptions: p.newDescriptions,
		Aliases:      p.newAliases,
	}

	pidsAdded := map[string]bool{}
	pidsChanged := map[string]bool{}

	for pid, claims := range p.Entity.Claims {
		for _, c := range claims {
			switch {
			case p.added[c]:
				pidsAdded[pid] = true
			case p.changed[c]:
				pidsChanged[pid] = true
			case p.refChanged[c]:
			default:
				continue
			}
			raw, err := model.MarshalClaim(c)
			if err != nil {
				return nil, fmt.Errorf("marshal claim %s: %w", pid, err)
			}
			edit.Claims = append(edit.Claims, raw)
		}
	}
	for _, id := range p.deleted {
		raw, err := json.Marshal(map[string]string{"id": id, "remove": ""})
		if err != nil {
			return nil, err
		}
		edit.Claims = append(edit.Claims, raw)
	}

	if edit.IsEmpty() {
		p.logf("no changes")
		return nil, nil
	}

	edit.Summary = p.buildSummary(pidsAdded, pidsChanged)
	return edit, nil
}

func (p *Page) buildSummary(pidsAdded, pidsChanged map[string]bool) string {
	var b strings.Builder
	b.WriteString(p.Summary)

	writePIDs := func(action string, pids map[string]bool) {
		if len(pids) == 0 {
			return
		}
		var list []string
		for pid := range pids {
			list = append(list, pid)
		}
		var parts []string
		for _, pid := range model.SortPIDs(list) {
			parts = append(parts, fmt.Sprintf("[[Property:%s]]", pid))
		}
		fmt.Fprintf(&b, ", %s %s", action, strings.Join(parts, ", "))
	}
	writePIDs("added", pidsAdded)
	writePIDs("changed", pidsChanged)

	var refParts []string
	if p.refsAdded > 0 {
		refParts = append(refParts, fmt.Sprintf("added (%dx)", p.refsAdded))
	}
	if p.refsUpdated > 0 {
		refParts = append(refParts, fmt.Sprintf("updated (%dx)", p.refsUpdated))
	}
	if p.refsDeleted > 0 {
		refParts = append(refParts, fmt.Sprintf("removed (%dx)", p.refsDeleted))
	}
	if len(refParts) > 0 {
		fmt.Fprintf(&b, ", references %s", strings.Join(refParts, ", "))
	}
	return strings.TrimPrefix(b.String(), ", ")
}

func realVitalPID(ev Event) string {
	if ev == Death {
		return model.PIDDateOfDeath
	}
	return model.PIDDateOfBirth
}
