package validation

import (
	"context"
	"fmt"

	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// HouseholdValidator cross-checks declared household composition against the
// batch: declared size vs counted members, declared size vs male+female
// split, and that a declared head actually exists. Field teams routinely get
// these slightly wrong, so every discrepancy is a warning.
type HouseholdValidator struct{}

func NewHouseholdValidator() *HouseholdValidator { return &HouseholdValidator{} }

func (v *HouseholdValidator) Name() string { return "household-structure" }
func (v *HouseholdValidator) Level() int   { return 4 }

func (v *HouseholdValidator) Validate(_ context.Context, set *RecordSet) LevelResult {
	members := make(map[string]int)
	persons := set.OriginalIDs(id.KindPerson)
	for _, r := range set.Kind(id.KindPerson) {
		p := r.Person()
		if p.HouseholdOriginalID != "" {
			members[p.HouseholdOriginalID]++
		}
	}

	var t tally
	for _, r := range set.Kind(id.KindHousehold) {
		t.checked++
		h := r.Household()

		if counted := members[h.OriginalID]; counted != h.DeclaredSize {
			t.addWarning(r, staging.Finding{
				Code:    "HOUSEHOLD_SIZE_MISMATCH",
				Field:   "declared_size",
				Message: fmt.Sprintf("declared size %d but %d members staged", h.DeclaredSize, counted),
			})
		}
		if h.MaleCount+h.FemaleCount != h.DeclaredSize {
			t.addWarning(r, staging.Finding{
				Code:    "HOUSEHOLD_SPLIT_MISMATCH",
				Field:   "declared_size",
				Message: fmt.Sprintf("male %d + female %d does not equal declared size %d", h.MaleCount, h.FemaleCount, h.DeclaredSize),
			})
		}
		if h.HeadPersonOriginalID != "" && !persons[h.HeadPersonOriginalID] {
			t.addWarning(r, staging.Finding{
				Code:    "HOUSEHOLD_HEAD_MISSING",
				Field:   "head_person_original_id",
				Message: fmt.Sprintf("declared head %q not found in package", h.HeadPersonOriginalID),
			})
		}
	}
	return t.result()
}
