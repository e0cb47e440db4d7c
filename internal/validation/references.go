package validation

import (
	"context"
	"fmt"

	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// ReferenceValidator checks that every cross-reference between staged
// records resolves within the batch. Dangling references are hard errors:
// the commit engine cannot remap an identifier that maps to nothing.
type ReferenceValidator struct{}

func NewReferenceValidator() *ReferenceValidator { return &ReferenceValidator{} }

func (v *ReferenceValidator) Name() string { return "reference-resolution" }
func (v *ReferenceValidator) Level() int   { return 2 }

func (v *ReferenceValidator) Validate(_ context.Context, set *RecordSet) LevelResult {
	buildings := set.OriginalIDs(id.KindBuilding)
	units := set.OriginalIDs(id.KindUnit)
	persons := set.OriginalIDs(id.KindPerson)
	households := set.OriginalIDs(id.KindHousehold)
	relations := set.OriginalIDs(id.KindRelation)
	claims := set.OriginalIDs(id.KindClaim)

	var t tally
	dangling := func(r *staging.Record, field, kind, ref string) {
		t.addError(r, staging.Finding{
			Code:    "REF_UNRESOLVED",
			Field:   field,
			Message: fmt.Sprintf("%s %q not found in package", kind, ref),
		})
	}

	for _, r := range set.Kind(id.KindUnit) {
		t.checked++
		u := r.Unit()
		if !buildings[u.BuildingOriginalID] {
			dangling(r, "building_original_id", "building", u.BuildingOriginalID)
		}
	}
	for _, r := range set.Kind(id.KindPerson) {
		t.checked++
		p := r.Person()
		if p.HouseholdOriginalID != "" && !households[p.HouseholdOriginalID] {
			dangling(r, "household_original_id", "household", p.HouseholdOriginalID)
		}
	}
	for _, r := range set.Kind(id.KindRelation) {
		t.checked++
		rel := r.Relation()
		if !persons[rel.PersonOriginalID] {
			dangling(r, "person_original_id", "person", rel.PersonOriginalID)
		}
		if !units[rel.UnitOriginalID] {
			dangling(r, "unit_original_id", "unit", rel.UnitOriginalID)
		}
	}
	for _, r := range set.Kind(id.KindEvidence) {
		t.checked++
		ev := r.Evidence()
		if ev.RelationOriginalID != "" && !relations[ev.RelationOriginalID] {
			dangling(r, "relation_original_id", "relation", ev.RelationOriginalID)
		}
		if ev.ClaimOriginalID != "" && !claims[ev.ClaimOriginalID] {
			dangling(r, "claim_original_id", "claim", ev.ClaimOriginalID)
		}
	}
	for _, r := range set.Kind(id.KindClaim) {
		t.checked++
		c := r.Claim()
		if !persons[c.ClaimantOriginalID] {
			dangling(r, "claimant_original_id", "person", c.ClaimantOriginalID)
		}
		if !units[c.UnitOriginalID] {
			dangling(r, "unit_original_id", "unit", c.UnitOriginalID)
		}
	}
	for _, r := range set.Kind(id.KindSurvey) {
		t.checked++
		sv := r.Survey()
		if !buildings[sv.BuildingOriginalID] {
			dangling(r, "building_original_id", "building", sv.BuildingOriginalID)
		}
	}
	return t.result()
}
