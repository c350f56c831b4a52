package model

import "testing"

func TestNewDate_Precision(t *testing.T) {
	tests := []struct {
		y, m, d int
		want    Precision
	}{
		{1600, 3, 5, PrecisionDay},
		{1600, 3, 0, PrecisionMonth},
		{1600, 0, 0, PrecisionYear},
	}
	for _, tt := range tests {
		d, err := NewDate(tt.y, tt.m, tt.d)
		if err != nil {
			t.Fatalf("NewDate(%d,%d,%d): %v", tt.y, tt.m, tt.d, err)
		}
		if d.Precision != tt.want {
			t.Errorf("NewDate(%d,%d,%d) precision = %d, want %d", tt.y, tt.m, tt.d, d.Precision, tt.want)
		}
	}
}

func TestNewDate_ZeroRejected(t *testing.T) {
	if _, err := NewDate(0, 0, 0); err == nil {
		t.Error("Expected error for all-zero date")
	}
	if _, err := NewDate(0, 3, 5); err == nil {
		t.Error("Expected error for day without year")
	}
}

func TestDate_CalendarModel(t *testing.T) {
	tests := []struct {
		name string
		d    Date
		want string
	}{
		{"pre-1582 defaults julian", MustDate(1500, 6, 1), URLProlepticJulianCalendar},
		{"post-1582 unset stays unset", MustDate(1700, 6, 1), URLUnspecifiedCalendar},
		{"explicit gregorian", Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarGregorian}, URLProlepticGregorianCalendar},
		{"assumed gregorian exports gregorian", Date{Year: 1700, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarAssumedGregorian}, URLProlepticGregorianCalendar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.CalendarModel(); got != tt.want {
				t.Errorf("CalendarModel() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDatesEqual_CalendarTolerance(t *testing.T) {
	julian := Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarJulian}
	gregorian := Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarGregorian}

	if DatesEqual(julian, gregorian, false) {
		t.Error("day-precision dates with different calendars should differ strictly")
	}
	if !DatesEqual(julian, gregorian, true) {
		t.Error("dates should match when calendar model is ignored")
	}

	// An unset label on either side is tolerated.
	unset := Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay}
	if !DatesEqual(julian, unset, false) {
		t.Error("unset calendar label should match any label")
	}
}

func TestSameNormalizedDate(t *testing.T) {
	day := MustDate(1600, 3, 5)
	year := YearDate(1600)
	if !SameNormalizedDate(day, year) {
		t.Error("day and year precision of the same year should group together")
	}
	if SameNormalizedDate(day, YearDate(1601)) {
		t.Error("different years should not group")
	}

	// Calendar labels are ignored at year precision and below.
	jYear := Date{Year: 1500, Precision: PrecisionYear, Calendar: CalendarJulian}
	gDay := Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarGregorian}
	if !SameNormalizedDate(jYear, gDay) {
		t.Error("calendar mismatch below year precision should be ignored")
	}

	// At day precision a real label mismatch blocks grouping.
	jDay := Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarJulian}
	if SameNormalizedDate(jDay, gDay) {
		t.Error("day-precision dates on different calendars should not group")
	}

	// Decade buckets compare on the bucket, not the raw year.
	d1 := Date{Year: 1601, Precision: PrecisionDecade}
	d2 := Date{Year: 1609, Precision: PrecisionDecade}
	if !SameNormalizedDate(d1, d2) {
		t.Error("years in one decade bucket should group at decade precision")
	}
}

func TestDatesEqual_NormalizedFields(t *testing.T) {
	a := Date{Year: 1600, Month: 3, Day: 5, Precision: PrecisionYear}
	b := Date{Year: 1600, Precision: PrecisionYear}
	if !DatesEqual(a, b, false) {
		t.Error("sub-precision fields should not affect equality")
	}
}

func TestDate_Middle_SameMonth(t *testing.T) {
	a := MustDate(1600, 3, 4)
	b := MustDate(1600, 3, 10)
	mid, err := Middle(a, b, false)
	if err != nil {
		t.Fatal(err)
	}
	if mid.Year != 1600 || mid.Month != 3 || mid.Day != 0 {
		t.Errorf("Middle = %s, want 1600-03", mid)
	}
	if mid.Precision != PrecisionMonth {
		t.Errorf("precision = %d, want month", mid.Precision)
	}
}

func TestDate_Middle_StrictBuckets(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Date
		wantPrec Precision
	}{
		{"same year", MustDate(1600, 2, 1), MustDate(1600, 11, 1), PrecisionYear},
		{"same decade", MustDate(1601, 0, 0), MustDate(1609, 0, 0), PrecisionDecade},
		{"same century", MustDate(1610, 0, 0), MustDate(1690, 0, 0), PrecisionCentury},
		{"same millennium", MustDate(1200, 0, 0), MustDate(1900, 0, 0), PrecisionMillennium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mid, err := Middle(tt.a, tt.b, true)
			if err != nil {
				t.Fatal(err)
			}
			if mid.Precision != tt.wantPrec {
				t.Errorf("precision = %d, want %d", mid.Precision, tt.wantPrec)
			}
			if mid.Year < tt.a.Year || mid.Year > tt.b.Year {
				t.Errorf("midpoint year %d outside [%d,%d]", mid.Year, tt.a.Year, tt.b.Year)
			}
		})
	}
}

func TestDate_Middle_StrictBucketMismatch(t *testing.T) {
	// Spans a millennium boundary, no common bucket.
	if _, err := Middle(MustDate(1990, 0, 0), MustDate(2010, 0, 0), true); err == nil {
		t.Error("expected error for dates without a common bucket")
	}
}

func TestDate_Middle_SpanWidths(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Date
		wantPrec Precision
	}{
		{"adjacent years collapse to year", MustDate(1600, 0, 0), MustDate(1601, 0, 0), PrecisionYear},
		{"decade span collapses to decade", MustDate(1600, 0, 0), MustDate(1611, 0, 0), PrecisionDecade},
		{"century span collapses to century", MustDate(1600, 0, 0), MustDate(1710, 0, 0), PrecisionCentury},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mid, err := Middle(tt.a, tt.b, false)
			if err != nil {
				t.Fatal(err)
			}
			if mid.Precision != tt.wantPrec {
				t.Errorf("precision = %d, want %d", mid.Precision, tt.wantPrec)
			}
			if mid.Year < tt.a.Year || mid.Year > tt.b.Year {
				t.Errorf("midpoint year %d outside [%d,%d]", mid.Year, tt.a.Year, tt.b.Year)
			}
		})
	}
}

func TestDate_Middle_WideSpanFallsBackToMillennium(t *testing.T) {
	mid, err := Middle(MustDate(1600, 0, 0), MustDate(1720, 0, 0), false)
	if err != nil {
		t.Fatal(err)
	}
	if mid.Precision != PrecisionMillennium {
		t.Errorf("precision = %d, want millennium", mid.Precision)
	}
}

func TestDate_Middle_Ordering(t *testing.T) {
	if _, err := Middle(MustDate(1700, 0, 0), MustDate(1600, 0, 0), false); err == nil {
		t.Error("expected error when earliest is after latest")
	}
}

func TestDate_Boundaries(t *testing.T) {
	if !MustDate(1600, 1, 1).IsFirstOfJanuary() {
		t.Error("1 Jan should be first of january")
	}
	if MustDate(1600, 1, 2).IsFirstOfJanuary() {
		t.Error("2 Jan is not first of january")
	}
	if !MustDate(1600, 12, 31).IsLastOfDecember() {
		t.Error("31 Dec should be last of december")
	}
	if MustDate(1600, 12, 30).IsLastOfDecember() {
		t.Error("30 Dec is not last of december")
	}
}

func TestDate_Buckets(t *testing.T) {
	if got := DecadeOf(1995); got != 199 {
		t.Errorf("DecadeOf(1995) = %d", got)
	}
	if got := CenturyOf(1700); got != 16 {
		t.Errorf("CenturyOf(1700) = %d, want 16", got)
	}
	if got := CenturyOf(1701); got != 17 {
		t.Errorf("CenturyOf(1701) = %d, want 17", got)
	}
	if got := MillenniumOf(2000); got != 1 {
		t.Errorf("MillenniumOf(2000) = %d, want 1", got)
	}
}

func TestDate_Follows(t *testing.T) {
	a := MustDate(1600, 0, 0)
	b := MustDate(1601, 0, 0)
	ok, err := b.Follows(a)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("1601 should follow 1600")
	}
	ok, err = a.Follows(b)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("1600 does not follow 1601")
	}
	if _, err := MustDate(1600, 3, 1).Follows(a); err == nil {
		t.Error("expected error for non-year precision")
	}
}

func TestDate_IsValid(t *testing.T) {
	if MustDate(1600, 2, 29).IsValid() != true {
		t.Error("1600-02-29 is a valid leap day")
	}
	bad := Date{Year: 1601, Month: 2, Day: 29, Precision: PrecisionDay}
	if bad.IsValid() {
		t.Error("1601-02-29 should be invalid")
	}
	if (Date{Year: 1600, Month: 13, Day: 1, Precision: PrecisionDay}).IsValid() {
		t.Error("month 13 should be invalid")
	}
}

func TestDateFromTime_RoundTrip(t *testing.T) {
	d := Date{Year: 1500, Month: 6, Day: 1, Precision: PrecisionDay, Calendar: CalendarJulian}
	tv, err := d.TimeValue()
	if err != nil {
		t.Fatal(err)
	}
	back, err := DateFromTime(tv)
	if err != nil {
		t.Fatal(err)
	}
	if !DatesEqual(d, back, false) {
		t.Errorf("round trip changed date: %s -> %s", d, back)
	}
}

func TestDateFromTime_UnknownCalendar(t *testing.T) {
	_, err := DateFromTime(TimeValue{Year: 1600, Precision: int(PrecisionYear), CalendarModel: "http://www.wikidata.org/entity/Q12345"})
	if err == nil {
		t.Error("expected error for unknown calendar model")
	}
	if KindOf(err) != KindInvalid {
		t.Errorf("kind = %v, want invalid", KindOf(err))
	}
}
