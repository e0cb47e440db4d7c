package validation

import (
	"context"
	"fmt"

	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// IdentifierValidator enforces the shape and in-batch uniqueness of the
// location-based composite building codes, and unit code uniqueness within a
// building. All findings here are hard errors: these identifiers become
// production keys at commit.
type IdentifierValidator struct {
	compositeLen int
}

func NewIdentifierValidator(compositeLen int) *IdentifierValidator {
	return &IdentifierValidator{compositeLen: compositeLen}
}

func (v *IdentifierValidator) Name() string { return "identifier-uniqueness" }
func (v *IdentifierValidator) Level() int   { return 8 }

func (v *IdentifierValidator) Validate(_ context.Context, set *RecordSet) LevelResult {
	var t tally

	composites := make(map[string][]*staging.Record)
	for _, r := range set.Kind(id.KindBuilding) {
		t.checked++
		b := r.Building()
		if !digitsOnly(b.CompositeCode) || len(b.CompositeCode) != v.compositeLen {
			t.addError(r, staging.Finding{
				Code:  "COMPOSITE_MALFORMED",
				Field: "composite_code",
				Message: fmt.Sprintf("composite code %q must be exactly %d digits",
					b.CompositeCode, v.compositeLen),
			})
			continue
		}
		composites[b.CompositeCode] = append(composites[b.CompositeCode], r)
	}
	for code, dupes := range composites {
		if len(dupes) < 2 {
			continue
		}
		for _, r := range dupes {
			t.addError(r, staging.Finding{
				Code:    "COMPOSITE_DUPLICATE",
				Field:   "composite_code",
				Message: fmt.Sprintf("composite code %s appears %d times in package", code, len(dupes)),
			})
		}
	}

	unitCodes := make(map[string][]*staging.Record)
	for _, r := range set.Kind(id.KindUnit) {
		t.checked++
		u := r.Unit()
		key := u.BuildingOriginalID + "/" + u.UnitCode
		unitCodes[key] = append(unitCodes[key], r)
	}
	for _, dupes := range unitCodes {
		if len(dupes) < 2 {
			continue
		}
		for _, r := range dupes {
			u := r.Unit()
			t.addError(r, staging.Finding{
				Code:  "UNIT_CODE_DUPLICATE",
				Field: "unit_code",
				Message: fmt.Sprintf("unit code %q appears %d times in building %s",
					u.UnitCode, len(dupes), u.BuildingOriginalID),
			})
		}
	}
	return t.result()
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
