package model

// ResourceKind selects which facility domains a query targets
type ResourceKind string

const (
	KindElderly     ResourceKind = "elderly"
	KindHealth      ResourceKind = "health"
	KindBoth        ResourceKind = "both"
	KindUnspecified ResourceKind = "unspecified"
)

// Domain is one of the two facility collections
type Domain string

const (
	DomainElderly Domain = "elderly"
	DomainHealth  Domain = "health"
)

// Domains returns the domains a query for this kind must touch.
// Unspecified behaves like both.
func (k ResourceKind) Domains() []Domain {
	switch k {
	case KindElderly:
		return []Domain{DomainElderly}
	case KindHealth:
		return []Domain{DomainHealth}
	default:
		return []Domain{DomainElderly, DomainHealth}
	}
}

// Includes reports whether the kind covers domain d
func (k ResourceKind) Includes(d Domain) bool {
	for _, domain := range k.Domains() {
		if domain == d {
			return true
		}
	}
	return false
}

// RawIntent is the loosely typed JSON object recovered from the completion service
type RawIntent map[string]any

// ParsedIntent is the canonical structured query built by the normalizer
type ParsedIntent struct {
	ResourceKind      ResourceKind `json:"resource_kind"`
	District          *string      `json:"district"`
	MinBeds           *int         `json:"min_beds"`
	MaxBeds           *int         `json:"max_beds"`
	Keyword           *string      `json:"keyword"`
	OwnershipCategory *string      `json:"ownership_category"` // "private", "public" or a stored label
	RadiusMeters      *float64     `json:"radius_meters"`
	ResultLimit       int          `json:"result_limit"`
}

// FallbackIntent is the permissive intent used when extraction fails
func FallbackIntent(query string, limit int) ParsedIntent {
	intent := ParsedIntent{
		ResourceKind: KindBoth,
		ResultLimit:  limit,
	}
	if query != "" {
		intent.Keyword = &query
	}
	return intent
}
