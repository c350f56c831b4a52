// Package qualifier normalizes, compares and merges claim qualifiers.
package qualifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/lineage/internal/model"
)

// Provenance records where a qualifier entry came from. Wikidata-provenance
// entries are never hard-deleted, only tombstoned, so an edit can never
// silently destroy data that was already on the item.
type Provenance int

const (
	ProvenanceExternal Provenance = iota
	ProvenanceWikidata
)

// Policy controls how values under one property merge.
type Policy string

const (
	PolicyOverwrite      Policy = "overwrite"
	PolicySkip           Policy = "skip"
	PolicyPreferWikidata Policy = "prefer_wikidata"
	PolicyPreferExternal Policy = "prefer_external"
	PolicyUnique         Policy = "unique"
)

// QIDRule pins a qualifier item to its canonical property. A QID seen under a
// forbidden property is remapped to the default.
type QIDRule struct {
	Default   string
	Forbidden map[string]bool
}

func defaultQIDRules() map[string]QIDRule {
	return map[string]QIDRule{
		model.QIDCirca: {
			Default:   model.PIDSourcingCircumstances,
			Forbidden: map[string]bool{model.PIDInstanceOf: true},
		},
		model.QIDPossibly: {
			Default:   model.PIDSourcingCircumstances,
			Forbidden: map[string]bool{model.PIDInstanceOf: true},
		},
	}
}

func defaultPolicies() map[string]Policy {
	return map[string]Policy{
		model.PIDStartTime:             PolicyPreferWikidata,
		model.PIDEndTime:               PolicyPreferWikidata,
		model.PIDEarliestDate:          PolicyPreferWikidata,
		model.PIDLatestDate:            PolicyPreferWikidata,
		model.PIDSourcingCircumstances: PolicyUnique,
		model.PIDURL:                   PolicyUnique,
	}
}

// pidOrder is the cross-property emission order; properties not listed keep
// insertion order after these.
var pidOrder = []string{
	model.PIDEarliestDate,
	model.PIDLatestDate,
	model.PIDSourcingCircumstances,
	model.PIDStartTime,
	model.PIDEndTime,
}

type entry struct {
	Value      model.Value
	Provenance Provenance
	Removed    bool
}

// Handler holds the normalized qualifier set of one claim.
type Handler struct {
	order    []string
	values   map[string][]entry
	policies map[string]Policy
	rules    map[string]QIDRule
}

// New returns an empty handler with the default policies and rules.
func New() *Handler {
	return &Handler{
		values:   map[string][]entry{},
		policies: defaultPolicies(),
		rules:    defaultQIDRules(),
	}
}

// FromClaim imports an existing claim's qualifiers, tagging every entry as
// Wikidata provenance. Forbidden-property QIDs are remapped on import.
func FromClaim(c *model.Claim) *Handler {
	h := New()
	for _, pid := range c.QualOrder {
		for _, v := range c.Qualifiers[pid] {
			target := pid
			if v.Kind == model.KindItem {
				target = h.pidForQID(v.QID, pid)
			}
			h.append(target, entry{Value: v, Provenance: ProvenanceWikidata})
		}
	}
	return h
}

// AddDate appends a date qualifier from an external source.
func (h *Handler) AddDate(pid string, d model.Date) error {
	if !model.IsPID(pid) {
		return model.Invalidf("invalid PID: %s", pid)
	}
	h.append(pid, entry{Value: model.TimeVal(d)})
	return nil
}

// AddQID appends an item qualifier, resolving its canonical property. An
// empty pidHint uses the rule default or sourcing circumstances.
func (h *Handler) AddQID(qid, pidHint string) error {
	qid = strings.TrimSpace(qid)
	if !model.IsQID(qid) {
		return model.Invalidf("not a QID: %s", qid)
	}
	h.append(h.pidForQID(qid, pidHint), entry{Value: model.ItemVal(qid)})
	return nil
}

// AddString appends a string qualifier from an external source.
func (h *Handler) AddString(pid, value string) error {
	if !model.IsPID(pid) {
		return model.Invalidf("invalid PID: %s", pid)
	}
	h.append(pid, entry{Value: model.StringVal(strings.TrimSpace(value))})
	return nil
}

// HasQID reports whether an active entry carries the QID under any property.
func (h *Handler) HasQID(qid string) bool {
	for _, entries := range h.values {
		for _, e := range entries {
			if !e.Removed && e.Value.Kind == model.KindItem && e.Value.QID == qid {
				return true
			}
		}
	}
	return false
}

// removeQID drops the QID from the set. A Wikidata-provenance entry is
// tombstoned so the removal shows up in the recreated qualifier structure; an
// external-only entry is hard-removed. Fails if the QID is not present.
func (h *Handler) removeQID(qid string) error {
	found := false
	for pid, entries := range h.values {
		kept := entries[:0]
		for _, e := range entries {
			if e.Value.Kind == model.KindItem && e.Value.QID == qid && !e.Removed {
				found = true
				if e.Provenance == ProvenanceWikidata {
					e.Removed = true
					kept = append(kept, e)
				}
				continue
			}
			kept = append(kept, e)
		}
		h.values[pid] = kept
	}
	if !found {
		return model.Preconditionf("qualifier %s not present", qid)
	}
	return nil
}

// IsEmpty reports whether no active entry remains.
func (h *Handler) IsEmpty() bool {
	for _, entries := range h.values {
		for _, e := range entries {
			if !e.Removed {
				return false
			}
		}
	}
	return true
}

// IsEqual compares two qualifier sets. Strict mode requires identical
// canonical (property, value) multisets. Relaxed mode tolerates one side
// missing a property, collapses equivalent temporal forms, and blocks on
// semantic conflicts such as a circa marker present on only one side.
func (h *Handler) IsEqual(other *Handler, strict bool) bool {
	if strict {
		return canonEqual(h.canonical(), other.canonical())
	}

	a := normalizeTemporal(h.canonical())
	b := normalizeTemporal(other.canonical())

	if !temporalMergeable(a, b) {
		return false
	}
	for pid := range union(a, b) {
		if isTemporalPID(pid) {
			continue
		}
		if !bucketMergeable(a[pid], b[pid]) {
			return false
		}
	}
	return !h.modifierMismatch(a, b)
}

// MergeResult reports what a merge changed, with human-readable notes for
// debug logging.
type MergeResult struct {
	Changed bool
	Notes   []string
}

// Merge folds other's values into h per the per-property policies. Wikidata
// values win; external values fill gaps. A semantic modifier mismatch blocks
// the whole merge.
func (h *Handler) Merge(other *Handler) MergeResult {
	var res MergeResult

	a := h.canonicalEntries()
	b := other.canonicalEntries()

	if h.modifierMismatch(entriesToValues(a), entriesToValues(b)) {
		res.Notes = append(res.Notes, "non-mergeable qualifier semantic mismatch (e.g. circa)")
		return res
	}

	pids := orderedPIDs(a, b)
	merged := map[string][]entry{}
	for _, pid := range pids {
		policy, ok := h.policies[pid]
		if !ok {
			policy = PolicyUnique
		}
		av, bv := a[pid], b[pid]
		switch policy {
		case PolicySkip:
			merged[pid] = av
		case PolicyOverwrite:
			if len(bv) > 0 && !entriesEqual(av, bv) {
				merged[pid] = bv
				res.Changed = true
				res.Notes = append(res.Notes, fmt.Sprintf("%s: overwrite with external", pid))
			} else {
				merged[pid] = av
			}
		case PolicyPreferWikidata, PolicyUnique:
			u := unionEntries(av, bv)
			if !entriesEqual(u, av) {
				res.Changed = true
				if policy == PolicyUnique {
					res.Notes = append(res.Notes, fmt.Sprintf("%s: unique union", pid))
				} else {
					res.Notes = append(res.Notes, fmt.Sprintf("%s: filled gaps from external", pid))
				}
			}
			merged[pid] = u
		case PolicyPreferExternal:
			if len(bv) > 0 {
				if !entriesEqual(av, bv) {
					res.Changed = true
					res.Notes = append(res.Notes, fmt.Sprintf("%s: prefer external", pid))
				}
				merged[pid] = bv
			} else {
				merged[pid] = av
			}
		}
	}

	h.order = nil
	h.values = map[string][]entry{}
	for _, pid := range pids {
		for _, e := range merged[pid] {
			h.append(pid, e)
		}
	}
	return res
}

// Recreate materializes the active qualifier set in deterministic order:
// semantic property order first, then insertion order; within a property,
// Wikidata-provenance entries before external ones.
func (h *Handler) Recreate() (order []string, quals map[string][]model.Value) {
	quals = map[string][]model.Value{}
	for _, pid := range h.orderedOwn() {
		var wd, ext []model.Value
		for _, e := range h.values[pid] {
			if e.Removed {
				continue
			}
			if e.Provenance == ProvenanceWikidata {
				wd = append(wd, e.Value)
			} else {
				ext = append(ext, e.Value)
			}
		}
		vals := append(wd, ext...)
		if len(vals) == 0 {
			continue
		}
		order = append(order, pid)
		quals[pid] = vals
	}
	return order, quals
}

// ApplyTo writes the recreated qualifier set onto a claim.
func (h *Handler) ApplyTo(c *model.Claim) {
	order, quals := h.Recreate()
	c.SetQualifiers(order, quals)
}

// --- internals ---

func (h *Handler) append(pid string, e entry) {
	if _, ok := h.values[pid]; !ok {
		h.order = append(h.order, pid)
	}
	h.values[pid] = append(h.values[pid], e)
}

func (h *Handler) pidForQID(qid, pidHint string) string {
	rule, ok := h.rules[qid]
	if !ok {
		if pidHint != "" {
			return pidHint
		}
		return model.PIDSourcingCircumstances
	}
	def := rule.Default
	if def == "" {
		def = pidHint
	}
	if def == "" {
		def = model.PIDSourcingCircumstances
	}
	if pidHint == "" || rule.Forbidden[pidHint] {
		return def
	}
	return pidHint
}

// canonical returns active values keyed by canonical property.
func (h *Handler) canonical() map[string][]model.Value {
	return entriesToValues(h.canonicalEntries())
}

func (h *Handler) canonicalEntries() map[string][]entry {
	out := map[string][]entry{}
	for _, pid := range h.order {
		for _, e := range h.values[pid] {
			if e.Removed {
				continue
			}
			target := pid
			if e.Value.Kind == model.KindItem {
				target = h.pidForQID(e.Value.QID, pid)
			}
			out[target] = append(out[target], e)
		}
	}
	return out
}

func (h *Handler) orderedOwn() []string {
	present := append([]string(nil), h.order...)
	rank := func(pid string) int {
		for i, p := range pidOrder {
			if p == pid {
				return i
			}
		}
		return len(pidOrder) + 1
	}
	sort.SliceStable(present, func(i, j int) bool {
		return rank(present[i]) < rank(present[j])
	})
	return present
}

func (h *Handler) modifierMismatch(a, b map[string][]model.Value) bool {
	nonMergeable := map[string]bool{}
	for qid, rule := range h.rules {
		if rule.Default == model.PIDSourcingCircumstances {
			nonMergeable[qid] = true
		}
	}
	return hasModifier(a, nonMergeable) != hasModifier(b, nonMergeable)
}

func hasModifier(store map[string][]model.Value, qids map[string]bool) bool {
	for _, vals := range store {
		for _, v := range vals {
			if v.Kind == model.KindItem && qids[v.QID] {
				return true
			}
		}
	}
	return false
}

func isTemporalPID(pid string) bool {
	switch pid {
	case model.PIDStartTime, model.PIDEndTime, model.PIDEarliestDate,
		model.PIDLatestDate, model.PIDPointInTime:
		return true
	}
	return false
}

// normalizeTemporal collapses a start+end pair (or earliest+latest pair) with
// the same value into a single point-in-time entry.
func normalizeTemporal(store map[string][]model.Value) map[string][]model.Value {
	out := map[string][]model.Value{}
	for pid, vals := range store {
		out[pid] = append([]model.Value(nil), vals...)
	}
	collapse := func(startPID, endPID string) {
		start, end := out[startPID], out[endPID]
		if len(start) == 1 && len(end) == 1 &&
			start[0].Kind == model.KindTime && end[0].Kind == model.KindTime &&
			model.DatesEqual(start[0].Time, end[0].Time, false) {
			delete(out, startPID)
			delete(out, endPID)
			out[model.PIDPointInTime] = append(out[model.PIDPointInTime], start[0])
		}
	}
	collapse(model.PIDStartTime, model.PIDEndTime)
	collapse(model.PIDEarliestDate, model.PIDLatestDate)
	return out
}

func temporalMergeable(a, b map[string][]model.Value) bool {
	firstDate := func(vals []model.Value) (model.Date, bool) {
		if len(vals) > 0 && vals[0].Kind == model.KindTime {
			return vals[0].Time, true
		}
		return model.Date{}, false
	}
	aStart, aHasStart := firstDate(a[model.PIDStartTime])
	aEnd, aHasEnd := firstDate(a[model.PIDEndTime])
	bStart, bHasStart := firstDate(b[model.PIDStartTime])
	bEnd, bHasEnd := firstDate(b[model.PIDEndTime])

	if aHasStart && bHasStart && !model.DatesEqual(aStart, bStart, false) {
		return false
	}
	if aHasEnd && bHasEnd && !model.DatesEqual(aEnd, bEnd, false) {
		return false
	}
	// Complementary-only pairs (start on one side, end on the other) describe
	// different things and must not merge.
	if aHasStart && !aHasEnd && bHasEnd && !bHasStart {
		return false
	}
	if aHasEnd && !aHasStart && bHasStart && !bHasEnd {
		return false
	}

	aPoint, aHasPoint := firstDate(a[model.PIDPointInTime])
	bPoint, bHasPoint := firstDate(b[model.PIDPointInTime])
	if aHasPoint && bHasPoint && !model.DatesEqual(aPoint, bPoint, false) {
		return false
	}
	return true
}

func bucketMergeable(a, b []model.Value) bool {
	// A property missing entirely on one side is mergeable. Date values must
	// not contradict when both sides carry them.
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	var aDates, bDates []model.Date
	for _, v := range a {
		if v.Kind == model.KindTime {
			aDates = append(aDates, v.Time)
		}
	}
	for _, v := range b {
		if v.Kind == model.KindTime {
			bDates = append(bDates, v.Time)
		}
	}
	if len(aDates) > 0 && len(bDates) > 0 {
		for _, d := range aDates {
			matched := false
			for _, e := range bDates {
				if model.DatesEqual(d, e, false) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

func union(a, b map[string][]model.Value) map[string]bool {
	out := map[string]bool{}
	for pid := range a {
		out[pid] = true
	}
	for pid := range b {
		out[pid] = true
	}
	return out
}

func entriesToValues(store map[string][]entry) map[string][]model.Value {
	out := map[string][]model.Value{}
	for pid, entries := range store {
		for _, e := range entries {
			out[pid] = append(out[pid], e.Value)
		}
	}
	return out
}

func orderedPIDs(a, b map[string][]entry) []string {
	seen := map[string]bool{}
	var out []string
	add := func(pid string) {
		if !seen[pid] {
			seen[pid] = true
			out = append(out, pid)
		}
	}
	for _, pid := range pidOrder {
		if _, ok := a[pid]; ok {
			add(pid)
		} else if _, ok := b[pid]; ok {
			add(pid)
		}
	}
	rest := make([]string, 0, len(a)+len(b))
	for pid := range a {
		rest = append(rest, pid)
	}
	for pid := range b {
		rest = append(rest, pid)
	}
	sort.Strings(rest)
	for _, pid := range rest {
		add(pid)
	}
	return out
}

func unionEntries(a, b []entry) []entry {
	seen := map[string]bool{}
	var out []entry
	for _, e := range append(append([]entry(nil), a...), b...) {
		k := valueKey(e.Value)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

func entriesEqual(a, b []entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if valueKey(a[i].Value) != valueKey(b[i].Value) {
			return false
		}
	}
	return true
}

func canonEqual(a, b map[string][]model.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for pid, av := range a {
		bv, ok := b[pid]
		if !ok || len(av) != len(bv) {
			return false
		}
		used := make([]bool, len(bv))
		for _, v := range av {
			matched := false
			for i, w := range bv {
				if !used[i] && valueKey(v) == valueKey(w) {
					used[i] = true
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

func valueKey(v model.Value) string {
	switch v.Kind {
	case model.KindTime:
		d := v.Time
		return fmt.Sprintf("date:%d:%d:%d:%d:%d", d.Year, d.Month, d.Day, d.Precision, d.Calendar)
	case model.KindItem:
		return "qid:" + v.QID
	default:
		return "str:" + v.Str
	}
}
