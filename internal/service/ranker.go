package service

import (
	"sort"

	"carefinder/internal/model"
	"carefinder/internal/utils"
)

// GeoRanker orders candidates by distance to the caller's reference point
type GeoRanker struct{}

// NewGeoRanker creates a ranker
func NewGeoRanker() *GeoRanker {
	return &GeoRanker{}
}

// Rank returns at most limit results. Without a reference point candidates keep their
// store order and carry no distance. With one, candidates lacking coordinates are dropped,
// radius (inclusive) is applied first, and results are sorted by distance then id.
// A non-positive limit means no truncation. candidates is never modified.
func (r *GeoRanker) Rank(candidates []model.Facility, ref *model.GeoPoint, radius *float64, limit int) []model.RankedFacility {
	if ref == nil {
		n := len(candidates)
		if limit > 0 && limit < n {
			n = limit
		}
		results := make([]model.RankedFacility, 0, n)
		for _, f := range candidates {
			if limit > 0 && len(results) >= limit {
				break
			}
			results = append(results, model.RankedFacility{Facility: f})
		}
		return results
	}

	results := make([]model.RankedFacility, 0, len(candidates))
	for _, f := range candidates {
		if !f.HasCoordinates() {
			continue
		}
		d := utils.HaversineMeters(ref.Lat, ref.Lng, *f.Lat, *f.Lng)
		if radius != nil && d > *radius {
			continue
		}
		results = append(results, model.RankedFacility{Facility: f, Distance: &d})
	}

	sort.SliceStable(results, func(i, j int) bool {
		di, dj := *results[i].Distance, *results[j].Distance
		if di != dj {
			return di < dj
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
