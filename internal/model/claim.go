package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rank orders coexisting values of one property.
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
)

// ValueKind tags the payload of a Value.
type ValueKind int

const (
	KindNone ValueKind = iota // unknown/no value snak
	KindTime
	KindItem
	KindString
	KindExternalID
	KindMonolingual
)

// TimeValue mirrors the Wikidata time datavalue.
type TimeValue struct {
	Year          int
	Month         int
	Day           int
	Precision     int
	CalendarModel string
}

// Value is the target of a snak: a date, an item reference, or a string.
type Value struct {
	Kind     ValueKind
	Time     Date
	QID      string
	Str      string
	Language string // monolingual text only
}

// TimeVal wraps a Date.
func TimeVal(d Date) Value { return Value{Kind: KindTime, Time: d} }

// ItemVal wraps an item id.
func ItemVal(qid string) Value { return Value{Kind: KindItem, QID: qid} }

// StringVal wraps a plain string.
func StringVal(s string) Value { return Value{Kind: KindString, Str: s} }

// ExternalIDVal wraps an external identifier.
func ExternalIDVal(s string) Value { return Value{Kind: KindExternalID, Str: s} }

// IsNone reports whether the value is an unknown-value snak.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// ValuesEqual compares two values. Time values compare via DatesEqual with
// strict calendar models; use DatesEqual directly when calendar tolerance is
// needed.
func ValuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		// external ids and strings carry the same payload shape
		if (a.Kind == KindString && b.Kind == KindExternalID) ||
			(a.Kind == KindExternalID && b.Kind == KindString) {
			return a.Str == b.Str
		}
		return false
	}
	switch a.Kind {
	case KindTime:
		return DatesEqual(a.Time, b.Time, false)
	case KindItem:
		return a.QID == b.QID
	case KindString, KindExternalID:
		return a.Str == b.Str
	case KindMonolingual:
		return a.Str == b.Str && a.Language == b.Language
	case KindNone:
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case KindTime:
		return v.Time.String()
	case KindItem:
		return v.QID
	case KindString, KindExternalID:
		return v.Str
	case KindMonolingual:
		return fmt.Sprintf("%s (%s)", v.Str, v.Language)
	}
	return "(no value)"
}

// Source is one provenance reference on a claim: an ordered set of snaks.
type Source struct {
	Order []string
	Snaks map[string][]Value
}

// NewSource returns an empty source.
func NewSource() Source {
	return Source{Snaks: map[string][]Value{}}
}

// Add appends a snak to the source, keeping property order.
func (s *Source) Add(pid string, v Value) {
	if s.Snaks == nil {
		s.Snaks = map[string][]Value{}
	}
	if _, ok := s.Snaks[pid]; !ok {
		s.Order = append(s.Order, pid)
	}
	s.Snaks[pid] = append(s.Snaks[pid], v)
}

// Has reports whether the source carries any snak for pid.
func (s Source) Has(pid string) bool {
	_, ok := s.Snaks[pid]
	return ok
}

// Properties returns the snak properties in order.
func (s Source) Properties() []string { return s.Order }

// Claim is one property-value assertion on an item, with rank, qualifiers and
// sources. A claim with an empty ID has not been persisted yet.
type Claim struct {
	ID         string
	Property   string
	Rank       Rank
	Value      Value
	Qualifiers map[string][]Value
	QualOrder  []string
	Sources    []Source
}

// NewClaim builds an unpersisted claim at normal rank.
func NewClaim(property string, v Value) *Claim {
	return &Claim{
		Property:   property,
		Rank:       RankNormal,
		Value:      v,
		Qualifiers: map[string][]Value{},
	}
}

// AddQualifier appends a qualifier value under pid, keeping property order.
func (c *Claim) AddQualifier(pid string, v Value) {
	if c.Qualifiers == nil {
		c.Qualifiers = map[string][]Value{}
	}
	if _, ok := c.Qualifiers[pid]; !ok {
		c.QualOrder = append(c.QualOrder, pid)
	}
	c.Qualifiers[pid] = append(c.Qualifiers[pid], v)
}

// SetQualifiers replaces the full qualifier set with the given ordered map.
func (c *Claim) SetQualifiers(order []string, quals map[string][]Value) {
	c.QualOrder = order
	c.Qualifiers = quals
}

// HasQualifier reports whether the claim carries target under the qualifier
// property pid.
func (c *Claim) HasQualifier(pid, targetQID string) bool {
	for _, v := range c.Qualifiers[pid] {
		if v.Kind == KindItem && v.QID == targetQID {
			return true
		}
	}
	return false
}

// HasQualifiers reports whether any qualifier is present.
func (c *Claim) HasQualifiers() bool {
	for _, vs := range c.Qualifiers {
		if len(vs) > 0 {
			return true
		}
	}
	return false
}

// IsSourced reports whether the claim has at least one reference.
func (c *Claim) IsSourced() bool { return len(c.Sources) > 0 }

// Entity is the in-memory view of one Wikidata item.
type Entity struct {
	QID          string
	Labels       map[string]string
	Descriptions map[string]string
	Aliases      map[string][]string
	Claims       map[string][]*Claim
	Redirect     bool
	Missing      bool
	BotEditable  bool
}

// FilterClaimsByRank keeps the preferred claims when any exist, otherwise all
// non-deprecated claims.
func FilterClaimsByRank(claims []*Claim) []*Claim {
	var preferred []*Claim
	for _, c := range claims {
		if c.Rank == RankPreferred {
			preferred = append(preferred, c)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}
	var out []*Claim
	for _, c := range claims {
		if c.Rank != RankDeprecated {
			out = append(out, c)
		}
	}
	return out
}

// --- Wikidata JSON wire shapes ---

type jsonDataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type jsonSnak struct {
	SnakType  string         `json:"snaktype"`
	Property  string         `json:"property"`
	DataType  string         `json:"datatype,omitempty"`
	DataValue *jsonDataValue `json:"datavalue,omitempty"`
}

type jsonTime struct {
	Time          string `json:"time"`
	Timezone      int    `json:"timezone"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

type jsonEntityID struct {
	EntityType string `json:"entity-type"`
	ID         string `json:"id"`
}

type jsonMonolingual struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type jsonReference struct {
	Snaks      map[string][]jsonSnak `json:"snaks"`
	SnaksOrder []string              `json:"snaks-order"`
}

type jsonClaim struct {
	ID              string                `json:"id,omitempty"`
	Type            string                `json:"type"`
	Rank            string                `json:"rank"`
	MainSnak        jsonSnak              `json:"mainsnak"`
	Qualifiers      map[string][]jsonSnak `json:"qualifiers,omitempty"`
	QualifiersOrder []string              `json:"qualifiers-order,omitempty"`
	References      []jsonReference       `json:"references,omitempty"`
}

func marshalTime(t TimeValue) jsonTime {
	sign := "+"
	y := t.Year
	if y < 0 {
		sign = "-"
		y = -y
	}
	return jsonTime{
		Time:          fmt.Sprintf("%s%04d-%02d-%02dT00:00:00Z", sign, y, t.Month, t.Day),
		Precision:     t.Precision,
		CalendarModel: t.CalendarModel,
	}
}

func marshalValue(pid string, v Value) (jsonSnak, error) {
	snak := jsonSnak{SnakType: "value", Property: pid}
	switch v.Kind {
	case KindNone:
		snak.SnakType = "somevalue"
		return snak, nil
	case KindTime:
		tv, err := v.Time.TimeValue()
		if err != nil {
			return jsonSnak{}, err
		}
		raw, err := json.Marshal(marshalTime(tv))
		if err != nil {
			return jsonSnak{}, err
		}
		snak.DataType = "time"
		snak.DataValue = &jsonDataValue{Type: "time", Value: raw}
	case KindItem:
		raw, err := json.Marshal(jsonEntityID{EntityType: "item", ID: v.QID})
		if err != nil {
			return jsonSnak{}, err
		}
		snak.DataType = "wikibase-item"
		snak.DataValue = &jsonDataValue{Type: "wikibase-entityid", Value: raw}
	case KindString, KindExternalID:
		raw, err := json.Marshal(v.Str)
		if err != nil {
			return jsonSnak{}, err
		}
		snak.DataType = "string"
		if v.Kind == KindExternalID {
			snak.DataType = "external-id"
		}
		snak.DataValue = &jsonDataValue{Type: "string", Value: raw}
	case KindMonolingual:
		raw, err := json.Marshal(jsonMonolingual{Text: v.Str, Language: v.Language})
		if err != nil {
			return jsonSnak{}, err
		}
		snak.DataType = "monolingualtext"
		snak.DataValue = &jsonDataValue{Type: "monolingualtext", Value: raw}
	default:
		return jsonSnak{}, Invalidf("cannot marshal value kind %d", v.Kind)
	}
	return snak, nil
}

func unmarshalSnak(s jsonSnak) (Value, error) {
	if s.SnakType != "value" || s.DataValue == nil {
		return Value{Kind: KindNone}, nil
	}
	switch s.DataValue.Type {
	case "time":
		var jt jsonTime
		if err := json.Unmarshal(s.DataValue.Value, &jt); err != nil {
			return Value{}, err
		}
		d, err := parseWikidataTime(jt)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindTime, Time: d}, nil
	case "wikibase-entityid":
		var je jsonEntityID
		if err := json.Unmarshal(s.DataValue.Value, &je); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindItem, QID: je.ID}, nil
	case "string":
		var str string
		if err := json.Unmarshal(s.DataValue.Value, &str); err != nil {
			return Value{}, err
		}
		if s.DataType == "external-id" {
			return Value{Kind: KindExternalID, Str: str}, nil
		}
		return Value{Kind: KindString, Str: str}, nil
	case "monolingualtext":
		var jm jsonMonolingual
		if err := json.Unmarshal(s.DataValue.Value, &jm); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindMonolingual, Str: jm.Text, Language: jm.Language}, nil
	}
	return Value{}, Invalidf("unsupported datavalue type %q", s.DataValue.Type)
}

func parseWikidataTime(jt jsonTime) (Date, error) {
	// "+1600-03-05T00:00:00Z"
	ts := jt.Time
	if len(ts) < 11 {
		return Date{}, Invalidf("malformed time %q", ts)
	}
	sign := 1
	if ts[0] == '-' {
		sign = -1
	}
	var y, m, d int
	if _, err := fmt.Sscanf(ts[1:], "%d-%d-%d", &y, &m, &d); err != nil {
		return Date{}, Invalidf("malformed time %q", ts)
	}
	return DateFromTime(TimeValue{
		Year:          sign * y,
		Month:         m,
		Day:           d,
		Precision:     jt.Precision,
		CalendarModel: jt.CalendarModel,
	})
}

// MarshalClaim renders a claim in the wbeditentity JSON shape.
func MarshalClaim(c *Claim) (json.RawMessage, error) {
	main, err := marshalValue(c.Property, c.Value)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", c.Property, err)
	}
	jc := jsonClaim{
		ID:       c.ID,
		Type:     "statement",
		Rank:     string(c.Rank),
		MainSnak: main,
	}
	if len(c.Qualifiers) > 0 {
		jc.Qualifiers = map[string][]jsonSnak{}
		for _, pid := range c.QualOrder {
			for _, v := range c.Qualifiers[pid] {
				snak, err := marshalValue(pid, v)
				if err != nil {
					return nil, fmt.Errorf("qualifier %s: %w", pid, err)
				}
				jc.Qualifiers[pid] = append(jc.Qualifiers[pid], snak)
			}
		}
		jc.QualifiersOrder = c.QualOrder
	}
	for _, src := range c.Sources {
		ref := jsonReference{Snaks: map[string][]jsonSnak{}, SnaksOrder: src.Order}
		for _, pid := range src.Order {
			for _, v := range src.Snaks[pid] {
				snak, err := marshalValue(pid, v)
				if err != nil {
					return nil, fmt.Errorf("reference %s: %w", pid, err)
				}
				ref.Snaks[pid] = append(ref.Snaks[pid], snak)
			}
		}
		jc.References = append(jc.References, ref)
	}
	return json.Marshal(jc)
}

// UnmarshalClaim parses one claim from entity JSON.
func UnmarshalClaim(raw json.RawMessage) (*Claim, error) {
	var jc jsonClaim
	if err := json.Unmarshal(raw, &jc); err != nil {
		return nil, err
	}
	val, err := unmarshalSnak(jc.MainSnak)
	if err != nil {
		return nil, err
	}
	c := &Claim{
		ID:         jc.ID,
		Property:   jc.MainSnak.Property,
		Rank:       Rank(strings.ToLower(jc.Rank)),
		Value:      val,
		Qualifiers: map[string][]Value{},
		QualOrder:  jc.QualifiersOrder,
	}
	if c.Rank == "" {
		c.Rank = RankNormal
	}
	for _, pid := range jc.QualifiersOrder {
		for _, snak := range jc.Qualifiers[pid] {
			v, err := unmarshalSnak(snak)
			if err != nil {
				return nil, err
			}
			c.Qualifiers[pid] = append(c.Qualifiers[pid], v)
		}
	}
	for _, ref := range jc.References {
		src := NewSource()
		for _, pid := range ref.SnaksOrder {
			for _, snak := range ref.Snaks[pid] {
				v, err := unmarshalSnak(snak)
				if err != nil {
					return nil, err
				}
				src.Add(pid, v)
			}
		}
		c.Sources = append(c.Sources, src)
	}
	return c, nil
}
