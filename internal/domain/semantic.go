package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Grain is a date-truncation granularity requested through a name suffix.
type Grain string

const (
	GrainNone  Grain = ""
	GrainWeek  Grain = "WEEK"
	GrainMonth Grain = "MONTH"
	GrainYear  Grain = "YEAR"
)

// MetricDefinition defines how to compute a named aggregate over one table.
type MetricDefinition struct {
	Name  string `json:"name" yaml:"name"`
	SQL   string `json:"sql" yaml:"sql"`
	Table string `json:"table" yaml:"table"`
}

// DimensionDefinition defines a named grouping/filtering column on one table.
type DimensionDefinition struct {
	Name  string `json:"name" yaml:"name"`
	SQL   string `json:"sql" yaml:"sql"`
	Table string `json:"table" yaml:"table"`
}

// JoinEdge declares a usable join between two tables. The one/many roles are
// descriptive only; lookups treat the edge as undirected.
type JoinEdge struct {
	One  string `json:"one" yaml:"one"`
	Many string `json:"many" yaml:"many"`
	Join string `json:"join" yaml:"join"`
}

// Connects reports whether the edge links tables a and b in either direction.
func (e JoinEdge) Connects(a, b string) bool {
	return (e.One == a && e.Many == b) || (e.One == b && e.Many == a)
}

// SemanticLayer maps logical names to physical SQL and declares join edges.
// It is supplied fresh for every compile call.
type SemanticLayer struct {
	Metrics    []MetricDefinition    `json:"metrics" yaml:"metrics"`
	Dimensions []DimensionDefinition `json:"dimensions" yaml:"dimensions"`
	Joins      []JoinEdge            `json:"joins" yaml:"joins"`
}

// Validate checks that metric names and dimension names are each unique. A
// metric and a dimension may share a name. Completeness of individual
// declarations is checked only for the ones a query resolves.
func (l *SemanticLayer) Validate() error {
	seenMetrics := make(map[string]bool, len(l.Metrics))
	for _, m := range l.Metrics {
		if m.Name == "" {
			continue
		}
		if seenMetrics[m.Name] {
			return &DuplicateDefinitionError{Kind: "metric", Name: m.Name}
		}
		seenMetrics[m.Name] = true
	}

	seenDims := make(map[string]bool, len(l.Dimensions))
	for _, d := range l.Dimensions {
		if d.Name == "" {
			continue
		}
		if seenDims[d.Name] {
			return &DuplicateDefinitionError{Kind: "dimension", Name: d.Name}
		}
		seenDims[d.Name] = true
	}
	return nil
}

// Validate checks that a resolved metric can be rendered.
func (m MetricDefinition) Validate() error {
	if strings.TrimSpace(m.SQL) == "" {
		return ErrValidation("metric %q: sql is required", m.Name)
	}
	if strings.TrimSpace(m.Table) == "" {
		return ErrValidation("metric %q: table is required", m.Name)
	}
	return nil
}

// Validate checks that a resolved dimension can be rendered.
func (d DimensionDefinition) Validate() error {
	if strings.TrimSpace(d.SQL) == "" {
		return ErrValidation("dimension %q: sql is required", d.Name)
	}
	if strings.TrimSpace(d.Table) == "" {
		return ErrValidation("dimension %q: table is required", d.Name)
	}
	return nil
}

// Validate checks that a selected join edge carries a predicate.
func (e JoinEdge) Validate() error {
	if strings.TrimSpace(e.Join) == "" {
		return ErrValidation("join %s-%s: join predicate is required", e.One, e.Many)
	}
	return nil
}

// FilterClause restricts a query by comparing a field against a literal value.
type FilterClause struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    FilterValue `json:"value" yaml:"value"`
}

// QuerySpec is a schema-independent analytic query.
type QuerySpec struct {
	Metrics    []string       `json:"metrics" yaml:"metrics"`
	Dimensions []string       `json:"dimensions" yaml:"dimensions"`
	Filters    []FilterClause `json:"filters" yaml:"filters"`
}

// GeneratedQuery is the document produced by the upstream generator: a query
// together with the semantic layer it should be compiled against.
type GeneratedQuery struct {
	Query         QuerySpec     `json:"query_json"`
	SemanticLayer SemanticLayer `json:"semantic_layer_json"`
}

// FilterValueKind identifies which literal type a FilterValue holds.
type FilterValueKind int

const (
	FilterValueUnset FilterValueKind = iota
	FilterValueString
	FilterValueNumber
	FilterValueBool
)

// FilterValue is a string, number or boolean literal. Numbers are kept as
// exact decimals so their textual form survives a JSON round trip.
type FilterValue struct {
	kind FilterValueKind
	str  string
	num  decimal.Decimal
	b    bool
}

// StringValue returns a string filter value.
func StringValue(s string) FilterValue {
	return FilterValue{kind: FilterValueString, str: s}
}

// NumberValue returns a numeric filter value.
func NumberValue(d decimal.Decimal) FilterValue {
	return FilterValue{kind: FilterValueNumber, num: d}
}

// IntValue returns an integer filter value.
func IntValue(n int64) FilterValue {
	return NumberValue(decimal.NewFromInt(n))
}

// FloatValue returns a floating-point filter value.
func FloatValue(f float64) FilterValue {
	return NumberValue(decimal.NewFromFloat(f))
}

// BoolValue returns a boolean filter value.
func BoolValue(b bool) FilterValue {
	return FilterValue{kind: FilterValueBool, b: b}
}

// Kind returns the literal type held by v.
func (v FilterValue) Kind() FilterValueKind { return v.kind }

// String returns the literal's textual form without SQL quoting.
func (v FilterValue) String() string {
	switch v.kind {
	case FilterValueString:
		return v.str
	case FilterValueNumber:
		return v.num.String()
	case FilterValueBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// SQLLiteral renders v for embedding into generated SQL. Strings are wrapped
// in single quotes verbatim; a string that itself contains a single quote is
// rejected rather than emitted unescaped.
func (v FilterValue) SQLLiteral() (string, error) {
	switch v.kind {
	case FilterValueString:
		if strings.ContainsRune(v.str, '\'') {
			return "", &InvalidFilterValueError{Reason: "string values must not contain single quotes"}
		}
		return "'" + v.str + "'", nil
	case FilterValueNumber, FilterValueBool:
		return v.String(), nil
	default:
		return "", &InvalidFilterValueError{Reason: "value is required"}
	}
}

// MarshalJSON encodes v as a JSON string, number or boolean.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case FilterValueString:
		return json.Marshal(v.str)
	case FilterValueNumber:
		return []byte(v.num.String()), nil
	case FilterValueBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, number or boolean.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &InvalidFilterValueError{Reason: "value is required"}
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case c == '-' || (c >= '0' && c <= '9'):
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return &InvalidFilterValueError{Reason: err.Error()}
		}
		*v = NumberValue(d)
	case c == 'n':
		return &InvalidFilterValueError{Reason: "value must not be null"}
	default:
		return &InvalidFilterValueError{Reason: "value must be a string, number or boolean"}
	}
	return nil
}
