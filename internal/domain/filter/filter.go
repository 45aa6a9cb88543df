// Package filter applies composite map-query criteria over located
// records.
package filter

import (
	"strings"

	"github.com/klupa/klupa/internal/domain/geo"
	"github.com/klupa/klupa/internal/domain/model"
)

// Criteria is the ephemeral filter state of one map view. The zero
// value matches everything.
type Criteria struct {
	Kinds        []string
	States       []string
	HasOrigin    bool
	OriginLat    float64
	OriginLng    float64
	RadiusMeters float64
	MinRating    float64
	Search       string
}

// Active reports whether any field deviates from its empty default.
func (c Criteria) Active() bool {
	return len(c.Kinds) > 0 ||
		len(c.States) > 0 ||
		(c.HasOrigin && c.RadiusMeters > 0) ||
		c.MinRating > 0 ||
		strings.TrimSpace(c.Search) != ""
}

// Apply returns the records matching every active criterion. An
// inactive criteria is an identity fast path: the input slice comes
// back untouched. Output preserves input order; the scan is O(n).
func Apply(records []model.Object, c Criteria) []model.Object {
	if !c.Active() {
		return records
	}

	out := make([]model.Object, 0, len(records))
	for _, rec := range records {
		if matches(rec, c) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec model.Object, c Criteria) bool {
	if len(c.Kinds) > 0 && !contains(c.Kinds, rec.Kind) {
		return false
	}
	if len(c.States) > 0 && !contains(c.States, rec.State) {
		return false
	}
	if c.HasOrigin && c.RadiusMeters > 0 {
		d := geo.DistanceMeters(c.OriginLat, c.OriginLng, rec.Latitude, rec.Longitude)
		if d > c.RadiusMeters {
			return false
		}
	}
	if c.MinRating > 0 && rec.Rating < c.MinRating {
		return false
	}
	if q := strings.TrimSpace(c.Search); q != "" {
		if !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(q)) {
			return false
		}
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
