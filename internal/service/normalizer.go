package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"carefinder/internal/config"
	"carefinder/internal/model"
	"carefinder/internal/utils"
)

// Accepted keys per field, canonical first. The second key is the one the prompt asks for.
var (
	keysResourceKind = []string{"resource_kind", "resource_type"}
	keysDistrict     = []string{"district"}
	keysMinBeds      = []string{"min_beds"}
	keysMaxBeds      = []string{"max_beds"}
	keysKeyword      = []string{"keyword"}
	keysOwnership    = []string{"ownership_category", "service_type"}
	keysRadius       = []string{"radius_meters", "radius"}
	keysLimit        = []string{"result_limit", "limit"}
)

// IntentNormalizer turns a loosely typed JSON object into a ParsedIntent.
// It is pure: the same input always yields the same intent and diagnostics.
type IntentNormalizer struct {
	vocab        *config.Vocabulary
	defaultLimit int
}

// NewIntentNormalizer creates a normalizer over vocab
func NewIntentNormalizer(vocab *config.Vocabulary, defaultLimit int) *IntentNormalizer {
	if defaultLimit <= 0 {
		defaultLimit = config.UnboundedLimit
	}
	return &IntentNormalizer{vocab: vocab, defaultLimit: defaultLimit}
}

// Normalize never fails. Fields that cannot be coerced are dropped and reported
// as ErrInvalidField diagnostics.
func (n *IntentNormalizer) Normalize(raw model.RawIntent) (model.ParsedIntent, []*IntentError) {
	var diags []*IntentError
	invalid := func(field string, err error) {
		diags = append(diags, &IntentError{Kind: ErrInvalidField, Op: "normalize", Field: field, Err: err})
	}

	intent := model.ParsedIntent{
		ResourceKind: model.KindUnspecified,
		ResultLimit:  n.defaultLimit,
	}

	if key, v, ok := lookup(raw, keysResourceKind); ok {
		kind, err := n.resourceKind(v)
		if err != nil {
			invalid(key, err)
		}
		intent.ResourceKind = kind
	}

	if key, v, ok := lookup(raw, keysDistrict); ok {
		s, err := optionalString(v)
		if err != nil {
			invalid(key, err)
		} else if s != nil {
			district := n.district(*s)
			intent.District = &district
		}
	}

	if key, v, ok := lookup(raw, keysMinBeds); ok {
		intent.MinBeds = nonNegativeInt(key, v, invalid)
	}
	if key, v, ok := lookup(raw, keysMaxBeds); ok {
		intent.MaxBeds = nonNegativeInt(key, v, invalid)
	}

	if key, v, ok := lookup(raw, keysKeyword); ok {
		s, err := optionalString(v)
		if err != nil {
			invalid(key, err)
		} else {
			intent.Keyword = s
		}
	}

	if key, v, ok := lookup(raw, keysOwnership); ok {
		s, err := optionalString(v)
		if err != nil {
			invalid(key, err)
		} else if s != nil {
			ownership := n.ownership(*s)
			intent.OwnershipCategory = &ownership
		}
	}

	if key, v, ok := lookup(raw, keysRadius); ok {
		f, present, err := optionalFloat(v)
		switch {
		case err != nil:
			invalid(key, err)
		case !present:
		case f <= 0:
			invalid(key, fmt.Errorf("radius must be positive, got %v", f))
		default:
			intent.RadiusMeters = &f
		}
	}

	if key, v, ok := lookup(raw, keysLimit); ok {
		i, present, err := optionalInt(v)
		switch {
		case err != nil:
			invalid(key, err)
		case !present:
		case i <= 0:
			invalid(key, fmt.Errorf("limit must be positive, got %d", i))
		default:
			intent.ResultLimit = i
		}
	}

	return intent, diags
}

// lookup returns the first key present in raw, canonical keys first
func lookup(raw model.RawIntent, keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return k, v, true
		}
	}
	return "", nil, false
}

func (n *IntentNormalizer) resourceKind(v any) (model.ResourceKind, error) {
	s, err := optionalString(v)
	if err != nil || s == nil {
		return model.KindUnspecified, err
	}
	if *s == string(model.KindUnspecified) {
		return model.KindUnspecified, nil
	}

	kinds := utils.MatchAliases(*s, n.vocab.ResourceKinds)
	switch {
	case len(kinds) == 0:
		return model.KindUnspecified, fmt.Errorf("unrecognized resource kind %q", *s)
	case len(kinds) > 1:
		return model.KindBoth, nil
	}

	switch kinds[0] {
	case "elderly":
		return model.KindElderly, nil
	case "health":
		return model.KindHealth, nil
	default:
		return model.KindBoth, nil
	}
}

func (n *IntentNormalizer) district(s string) string {
	if d, ok := utils.MatchDistrict(s, n.vocab.Districts); ok {
		return d
	}
	return s
}

// ownership resolves colloquial terms to a category key; labels and free text pass through
func (n *IntentNormalizer) ownership(s string) string {
	if cat, ok := n.vocab.OwnershipByTerm(s); ok {
		return cat.Key
	}
	return s
}

func nonNegativeInt(key string, v any, invalid func(string, error)) *int {
	i, present, err := optionalInt(v)
	switch {
	case err != nil:
		invalid(key, err)
	case !present:
	case i < 0:
		invalid(key, fmt.Errorf("must not be negative, got %d", i))
	default:
		return &i
	}
	return nil
}

// isNullLiteral reports the textual nulls models emit instead of JSON null
func isNullLiteral(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "nil", "undefined", "n/a":
		return true
	}
	return false
}

// optionalString returns nil for JSON null and null literals
func optionalString(v any) (*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(val)
		if isNullLiteral(s) {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("expected string, got %T", v)
	}
}

// optionalFloat accepts JSON numbers and numeric strings
func optionalFloat(v any) (float64, bool, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("invalid number %q: %w", val, err)
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		s := strings.TrimSpace(val)
		if isNullLiteral(s) {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid number %q", s)
		}
		f = parsed
	default:
		return 0, false, fmt.Errorf("expected number, got %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("number out of range: %v", f)
	}
	return f, true, nil
}

// optionalInt accepts integral numbers only ("100", 100, 100.0)
func optionalInt(v any) (int, bool, error) {
	f, present, err := optionalFloat(v)
	if err != nil || !present {
		return 0, present, err
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("expected integer, got %v", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false, fmt.Errorf("integer out of range: %v", f)
	}
	return int(f), true, nil
}
