package model

import "strings"

// Operator is a predicate comparison
type Operator string

const (
	OpContains Operator = "contains" // case-insensitive substring (ILIKE %v%)
	OpGTE      Operator = "gte"
	OpLTE      Operator = "lte"
)

// Filterable facility columns
const (
	FieldDistrict = "district"
	FieldName     = "name"
	FieldAddress  = "address"
	FieldBeds     = "beds"
	FieldType     = "type"
)

// Predicate holds when any of Fields matches any of Values under Op
type Predicate struct {
	Fields []string `json:"fields"`
	Op     Operator `json:"op"`
	Values []any    `json:"values"`
}

// PredicateSet is the conjunction of predicates for one domain plus the ranking bounds
type PredicateSet struct {
	Domain       Domain      `json:"domain"`
	Predicates   []Predicate `json:"predicates"`
	RadiusMeters *float64    `json:"radius_meters,omitempty"`
	Limit        int         `json:"limit"`
}

// Matches evaluates the attribute predicates against f in memory
func (s PredicateSet) Matches(f Facility) bool {
	for _, p := range s.Predicates {
		if !p.Matches(f) {
			return false
		}
	}
	return true
}

// Matches evaluates a single predicate against f
func (p Predicate) Matches(f Facility) bool {
	for _, field := range p.Fields {
		for _, value := range p.Values {
			if matchField(f, field, p.Op, value) {
				return true
			}
		}
	}
	return false
}

func matchField(f Facility, field string, op Operator, value any) bool {
	switch op {
	case OpContains:
		text := textField(f, field)
		needle, ok := value.(string)
		if text == nil || !ok {
			return false
		}
		return strings.Contains(strings.ToLower(*text), strings.ToLower(needle))
	case OpGTE, OpLTE:
		if field != FieldBeds || f.Beds == nil {
			return false
		}
		bound, ok := value.(int)
		if !ok {
			return false
		}
		if op == OpGTE {
			return *f.Beds >= bound
		}
		return *f.Beds <= bound
	}
	return false
}

func textField(f Facility, field string) *string {
	switch field {
	case FieldDistrict:
		return f.District
	case FieldName:
		return f.Name
	case FieldAddress:
		return f.Address
	case FieldType:
		return f.Type
	}
	return nil
}
