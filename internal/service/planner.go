package service

import (
	"carefinder/internal/config"
	"carefinder/internal/model"
)

// QueryPlanner builds the per-domain predicate set for an intent
type QueryPlanner struct {
	vocab *config.Vocabulary
}

// NewQueryPlanner creates a planner that expands ownership categories through vocab
func NewQueryPlanner(vocab *config.Vocabulary) *QueryPlanner {
	return &QueryPlanner{vocab: vocab}
}

// Plan returns the conjunction of attribute predicates for domain.
// Bed and ownership predicates apply to elderly facilities only.
// Radius and limit are copied as given; neither is derived from the other.
func (p *QueryPlanner) Plan(intent model.ParsedIntent, domain model.Domain) model.PredicateSet {
	set := model.PredicateSet{
		Domain:       domain,
		Predicates:   []model.Predicate{},
		RadiusMeters: intent.RadiusMeters,
		Limit:        intent.ResultLimit,
	}

	if intent.District != nil {
		set.Predicates = append(set.Predicates, model.Predicate{
			Fields: []string{model.FieldDistrict},
			Op:     model.OpContains,
			Values: []any{*intent.District},
		})
	}

	if intent.Keyword != nil {
		set.Predicates = append(set.Predicates, model.Predicate{
			Fields: []string{model.FieldName, model.FieldAddress},
			Op:     model.OpContains,
			Values: []any{*intent.Keyword},
		})
	}

	if domain != model.DomainElderly {
		return set
	}

	if intent.MinBeds != nil {
		set.Predicates = append(set.Predicates, model.Predicate{
			Fields: []string{model.FieldBeds},
			Op:     model.OpGTE,
			Values: []any{*intent.MinBeds},
		})
	}
	if intent.MaxBeds != nil {
		set.Predicates = append(set.Predicates, model.Predicate{
			Fields: []string{model.FieldBeds},
			Op:     model.OpLTE,
			Values: []any{*intent.MaxBeds},
		})
	}

	if intent.OwnershipCategory != nil {
		labels := p.OwnershipLabels(*intent.OwnershipCategory)
		values := make([]any, 0, len(labels))
		for _, l := range labels {
			values = append(values, l)
		}
		set.Predicates = append(set.Predicates, model.Predicate{
			Fields: []string{model.FieldType},
			Op:     model.OpContains,
			Values: values,
		})
	}

	return set
}

// OwnershipLabels expands a category key into its stored labels.
// A stored label or any other text stands for itself.
func (p *QueryPlanner) OwnershipLabels(category string) []string {
	if cat, ok := p.vocab.OwnershipByKey(category); ok {
		return append([]string(nil), cat.Labels...)
	}
	return []string{category}
}
