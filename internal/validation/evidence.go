package validation

import (
	"context"
	"fmt"

	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// ownerRelationCode is the relation_type vocabulary code for ownership.
const ownerRelationCode = 1

// EvidenceValidator flags ownership relations that arrived without any
// supporting evidence, and evidence records missing their file reference.
// Both are warnings for review, never blocking.
type EvidenceValidator struct{}

func NewEvidenceValidator() *EvidenceValidator { return &EvidenceValidator{} }

func (v *EvidenceValidator) Name() string { return "ownership-evidence" }
func (v *EvidenceValidator) Level() int   { return 3 }

func (v *EvidenceValidator) Validate(_ context.Context, set *RecordSet) LevelResult {
	evidenced := make(map[string]bool)
	var t tally

	for _, r := range set.Kind(id.KindEvidence) {
		t.checked++
		ev := r.Evidence()
		if ev.RelationOriginalID != "" {
			evidenced[ev.RelationOriginalID] = true
		}
		if ev.FileRef == "" {
			t.addWarning(r, staging.Finding{
				Code:    "EVIDENCE_NO_FILE",
				Field:   "file_ref",
				Message: "evidence record has no file reference",
			})
		}
	}

	for _, r := range set.Kind(id.KindRelation) {
		t.checked++
		rel := r.Relation()
		if rel.RelationCode != ownerRelationCode {
			continue
		}
		if !evidenced[rel.OriginalID] {
			t.addWarning(r, staging.Finding{
				Code:    "OWNER_NO_EVIDENCE",
				Message: fmt.Sprintf("ownership relation %s has no linked evidence", rel.OriginalID),
			})
		}
	}
	return t.result()
}
