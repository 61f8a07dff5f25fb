package utils

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// District suffixes stripped to build short forms (浦东新区 -> 浦东, 静安区 -> 静安)
var districtSuffixes = []string{"新区", "区", "县"}

// MatchDistrict resolves raw user text to a vocabulary district.
// Exact names win, then full names contained in raw, then short forms; the match that
// appears earliest in raw is preferred. Returns false when nothing in the vocabulary fits.
func MatchDistrict(raw string, districts []string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", false
	}

	for _, d := range districts {
		if d == text {
			return d, true
		}
	}

	if d, ok := earliestMatch(text, districts, func(d string) string { return d }); ok {
		return d, true
	}

	return earliestMatch(text, districts, shortDistrictName)
}

func earliestMatch(text string, districts []string, form func(string) string) (string, bool) {
	best := ""
	bestPos := -1
	for _, d := range districts {
		needle := form(d)
		if utf8.RuneCountInString(needle) < 2 {
			continue
		}
		if pos := strings.Index(text, needle); pos >= 0 && (bestPos < 0 || pos < bestPos) {
			best, bestPos = d, pos
		}
	}
	return best, bestPos >= 0
}

func shortDistrictName(d string) string {
	for _, suffix := range districtSuffixes {
		if strings.HasSuffix(d, suffix) {
			return strings.TrimSuffix(d, suffix)
		}
	}
	return d
}

// MatchAliases returns every key whose aliases match term: exact (case-insensitive) matches
// take precedence; otherwise any alias contained in term counts. Keys come back sorted.
func MatchAliases(term string, aliases map[string][]string) []string {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return nil
	}

	var exact, contained []string
	for key, values := range aliases {
		isExact, isContained := strings.ToLower(key) == t, false
		for _, alias := range values {
			a := strings.ToLower(alias)
			if a == t {
				isExact = true
			} else if a != "" && strings.Contains(t, a) {
				isContained = true
			}
		}
		if isExact {
			exact = append(exact, key)
		} else if isContained {
			contained = append(contained, key)
		}
	}

	result := exact
	if len(result) == 0 {
		result = contained
	}
	sort.Strings(result)
	return result
}

// EscapeLikePattern escapes LIKE wildcards so user text is matched literally
func EscapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BuildILikeAnyCondition builds "(col ILIKE $n OR ...)" over every column/value pair.
// Values are matched as substrings. Returns the condition, its parameters and the next index.
func BuildILikeAnyCondition(columns []string, values []string, paramIndex int) (string, []interface{}, int) {
	if len(columns) == 0 || len(values) == 0 {
		return "", nil, paramIndex
	}

	var orConditions []string
	var params []interface{}
	for _, column := range columns {
		for _, value := range values {
			orConditions = append(orConditions, fmt.Sprintf("%s ILIKE $%d", column, paramIndex))
			params = append(params, "%"+EscapeLikePattern(value)+"%")
			paramIndex++
		}
	}

	if len(orConditions) == 1 {
		return orConditions[0], params, paramIndex
	}
	return "(" + strings.Join(orConditions, " OR ") + ")", params, paramIndex
}
