package validation

import (
	"context"
	"fmt"
	"strings"

	"terrasync/internal/platform/config"
	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// geometryKeywords are the WKT shape prefixes devices are allowed to export.
var geometryKeywords = []string{"POINT", "POLYGON", "MULTIPOLYGON", "LINESTRING"}

// SpatialValidator checks building coordinates against the operating
// country's bounding box. Coordinates must come as a pair; a half-supplied
// or out-of-bounds pair is a hard error because a misplaced building poisons
// every spatial query downstream. Unrecognized geometry text is a warning.
type SpatialValidator struct {
	bounds config.BoundingBox
}

func NewSpatialValidator(bounds config.BoundingBox) *SpatialValidator {
	return &SpatialValidator{bounds: bounds}
}

func (v *SpatialValidator) Name() string { return "spatial-geometry" }
func (v *SpatialValidator) Level() int   { return 5 }

func (v *SpatialValidator) Validate(_ context.Context, set *RecordSet) LevelResult {
	var t tally
	for _, r := range set.Kind(id.KindBuilding) {
		t.checked++
		b := r.Building()

		switch {
		case b.Latitude == nil && b.Longitude == nil:
			// No coordinates at all is allowed; some structures are
			// registered before the field visit.
		case b.Latitude == nil || b.Longitude == nil:
			t.addError(r, staging.Finding{
				Code:    "COORD_HALF_PAIR",
				Field:   "latitude",
				Message: "latitude and longitude must be supplied together",
			})
		case !v.bounds.Contains(*b.Latitude, *b.Longitude):
			t.addError(r, staging.Finding{
				Code:  "COORD_OUT_OF_BOUNDS",
				Field: "latitude",
				Message: fmt.Sprintf("point (%f, %f) is outside the operating area",
					*b.Latitude, *b.Longitude),
			})
		}

		if b.Geometry != "" && !recognizedGeometry(b.Geometry) {
			t.addWarning(r, staging.Finding{
				Code:    "GEOMETRY_UNRECOGNIZED",
				Field:   "geometry",
				Message: "geometry text does not start with a recognized shape keyword",
			})
		}
	}
	return t.result()
}

func recognizedGeometry(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, kw := range geometryKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}
