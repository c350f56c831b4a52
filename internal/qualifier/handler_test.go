package qualifier

import (
	"testing"

	"github.com/ppiankov/lineage/internal/model"
)

func TestHandler_AddQID_Remap(t *testing.T) {
	h := New()
	// Circa seen under instance-of must land under sourcing circumstances.
	if err := h.AddQID(model.QIDCirca, model.PIDInstanceOf); err != nil {
		t.Fatal(err)
	}
	order, quals := h.Recreate()
	if len(order) != 1 || order[0] != model.PIDSourcingCircumstances {
		t.Fatalf("order = %v, want [%s]", order, model.PIDSourcingCircumstances)
	}
	if len(quals[model.PIDSourcingCircumstances]) != 1 {
		t.Fatal("expected one circa entry")
	}
}

func TestHandler_AddQID_Invalid(t *testing.T) {
	h := New()
	if err := h.AddQID("P569", ""); err == nil {
		t.Error("expected error for PID passed as QID")
	}
	if err := h.AddDate("Q5", model.YearDate(1900)); err == nil {
		t.Error("expected error for QID passed as PID")
	}
}

func TestHandler_removeQID(t *testing.T) {
	// External entries are hard-removed.
	h := New()
	if err := h.AddQID(model.QIDCirca, ""); err != nil {
		t.Fatal(err)
	}
	if err := h.removeQID(model.QIDCirca); err != nil {
		t.Fatal(err)
	}
	if h.HasQID(model.QIDCirca) {
		t.Error("circa should be gone")
	}
	if !h.IsEmpty() {
		t.Error("handler should be empty after removing the only entry")
	}

	// Removing an absent QID fails.
	if err := h.removeQID(model.QIDCirca); err == nil {
		t.Error("expected error for absent QID")
	}
	if model.KindOf(h.removeQID(model.QIDCirca)) != model.KindPrecondition {
		t.Error("expected precondition error")
	}
}

func TestHandler_removeQID_TombstonesWikidata(t *testing.T) {
	claim := model.NewClaim(model.PIDDateOfBirth, model.TimeVal(model.YearDate(1900)))
	claim.AddQualifier(model.PIDSourcingCircumstances, model.ItemVal(model.QIDCirca))

	h := FromClaim(claim)
	if err := h.removeQID(model.QIDCirca); err != nil {
		t.Fatal(err)
	}
	if h.HasQID(model.QIDCirca) {
		t.Error("tombstoned entry should not count as active")
	}
	order, _ := h.Recreate()
	if len(order) != 0 {
		t.Errorf("recreated set should omit tombstoned entry, got %v", order)
	}
}

func TestHandler_FromClaim_RemapsForbidden(t *testing.T) {
	claim := model.NewClaim(model.PIDDateOfBirth, model.TimeVal(model.YearDate(1900)))
	claim.AddQualifier(model.PIDInstanceOf, model.ItemVal(model.QIDCirca))

	h := FromClaim(claim)
	_, quals := h.Recreate()
	if len(quals[model.PIDSourcingCircumstances]) != 1 {
		t.Error("circa under a forbidden property should remap on import")
	}
	if len(quals[model.PIDInstanceOf]) != 0 {
		t.Error("forbidden property should be empty after remap")
	}
}

func TestHandler_IsEqual_Strict(t *testing.T) {
	a := New()
	b := New()
	if err := a.AddDate(model.PIDStartTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if !a.IsEqual(a, true) {
		t.Error("handler should equal itself strictly")
	}
	if a.IsEqual(b, true) {
		t.Error("different sets should not be strictly equal")
	}

	if err := b.AddDate(model.PIDStartTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if !a.IsEqual(b, true) {
		t.Error("same canonical values should be strictly equal")
	}
}

func TestHandler_IsEqual_RelaxedMissingSide(t *testing.T) {
	a := New()
	if err := a.AddString(model.PIDSubjectNamedAs, "Jan Jansz"); err != nil {
		t.Fatal(err)
	}
	b := New()
	if !a.IsEqual(b, false) {
		t.Error("relaxed equality should tolerate one side missing a property")
	}
	if a.IsEqual(b, true) {
		t.Error("strict equality should not")
	}
}

func TestHandler_IsEqual_TemporalCollapse(t *testing.T) {
	// point-in-time 1900 vs start 1900 + end 1900 are the same assertion.
	a := New()
	if err := a.AddDate(model.PIDPointInTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	b := New()
	if err := b.AddDate(model.PIDStartTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if err := b.AddDate(model.PIDEndTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if !a.IsEqual(b, false) {
		t.Error("start+end pair with one value should collapse to point in time")
	}
}

func TestHandler_IsEqual_TemporalConflict(t *testing.T) {
	a := New()
	if err := a.AddDate(model.PIDStartTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	b := New()
	if err := b.AddDate(model.PIDStartTime, model.YearDate(1905)); err != nil {
		t.Fatal(err)
	}
	if a.IsEqual(b, false) {
		t.Error("conflicting start times must not be equal")
	}

	// Complementary-only: start on one side, end on the other.
	c := New()
	if err := c.AddDate(model.PIDEndTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if a.IsEqual(c, false) {
		t.Error("start-only vs end-only must not be equal")
	}
}

func TestHandler_IsEqual_CircaMismatch(t *testing.T) {
	plain := New()
	if err := plain.AddDate(model.PIDStartTime, model.YearDate(1870)); err != nil {
		t.Fatal(err)
	}
	circa := New()
	if err := circa.AddDate(model.PIDStartTime, model.YearDate(1870)); err != nil {
		t.Fatal(err)
	}
	if err := circa.AddQID(model.QIDCirca, ""); err != nil {
		t.Fatal(err)
	}
	if plain.IsEqual(circa, false) {
		t.Error("a circa marker on one side only must block equality")
	}
	if !circa.IsEqual(circa, false) {
		t.Error("circa on both sides is fine")
	}
}

func TestHandler_Merge_FillsGaps(t *testing.T) {
	wd := FromClaim(claimWithStart(t, 1900))
	ext := New()
	if err := ext.AddDate(model.PIDStartTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if err := ext.AddDate(model.PIDEndTime, model.YearDate(1910)); err != nil {
		t.Fatal(err)
	}

	res := wd.Merge(ext)
	if !res.Changed {
		t.Fatal("merge should add the missing end time")
	}
	_, quals := wd.Recreate()
	if len(quals[model.PIDStartTime]) != 1 {
		t.Error("start time should remain")
	}
	if len(quals[model.PIDEndTime]) != 1 {
		t.Error("end time should be filled from external")
	}
}

func TestHandler_Merge_WikidataWins(t *testing.T) {
	wd := FromClaim(claimWithStart(t, 1900))
	ext := New()
	if err := ext.AddDate(model.PIDStartTime, model.YearDate(1905)); err != nil {
		t.Fatal(err)
	}

	res := wd.Merge(ext)
	_, quals := wd.Recreate()
	vals := quals[model.PIDStartTime]
	if len(vals) == 0 || !model.DatesEqual(vals[0].Time, model.YearDate(1900), false) {
		t.Errorf("wikidata start time must stay first, got %v (changed=%v)", vals, res.Changed)
	}
}

func TestHandler_Merge_CircaBlocks(t *testing.T) {
	wd := FromClaim(claimWithStart(t, 1870))
	ext := New()
	if err := ext.AddDate(model.PIDStartTime, model.YearDate(1870)); err != nil {
		t.Fatal(err)
	}
	if err := ext.AddQID(model.QIDCirca, ""); err != nil {
		t.Fatal(err)
	}

	res := wd.Merge(ext)
	if res.Changed {
		t.Error("circa presence mismatch must block the merge")
	}
	if len(res.Notes) == 0 {
		t.Error("blocked merge should explain itself")
	}
}

func TestHandler_Recreate_Order(t *testing.T) {
	h := New()
	if err := h.AddDate(model.PIDEndTime, model.YearDate(1910)); err != nil {
		t.Fatal(err)
	}
	if err := h.AddDate(model.PIDStartTime, model.YearDate(1900)); err != nil {
		t.Fatal(err)
	}
	if err := h.AddDate(model.PIDEarliestDate, model.YearDate(1895)); err != nil {
		t.Fatal(err)
	}

	order, _ := h.Recreate()
	want := []string{model.PIDEarliestDate, model.PIDStartTime, model.PIDEndTime}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func claimWithStart(t *testing.T, year int) *model.Claim {
	t.Helper()
	c := model.NewClaim(model.PIDSpouse, model.ItemVal("Q42"))
	c.AddQualifier(model.PIDStartTime, model.TimeVal(model.YearDate(year)))
	return c
}
