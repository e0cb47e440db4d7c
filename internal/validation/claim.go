package validation

import (
	"context"
	"fmt"

	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// Imported claims may only arrive in the initial state for submissions that
// came through a device batch; commit normalizes deviations.
const (
	ImportClaimStatus = "submitted"
	ImportClaimStage  = "intake"
)

// ClaimValidator flags claims that arrive in any status or stage other than
// the single permitted import-entry state. Deviations are warnings.
type ClaimValidator struct{}

func NewClaimValidator() *ClaimValidator { return &ClaimValidator{} }

func (v *ClaimValidator) Name() string { return "claim-lifecycle" }
func (v *ClaimValidator) Level() int   { return 6 }

func (v *ClaimValidator) Validate(_ context.Context, set *RecordSet) LevelResult {
	var t tally
	for _, r := range set.Kind(id.KindClaim) {
		t.checked++
		c := r.Claim()
		if c.Status != ImportClaimStatus {
			t.addWarning(r, staging.Finding{
				Code:    "CLAIM_STATUS_NOT_INITIAL",
				Field:   "status",
				Message: fmt.Sprintf("claim arrived as %q, will be normalized to %q", c.Status, ImportClaimStatus),
			})
		}
		if c.Stage != ImportClaimStage {
			t.addWarning(r, staging.Finding{
				Code:    "CLAIM_STAGE_NOT_INITIAL",
				Field:   "stage",
				Message: fmt.Sprintf("claim arrived in stage %q, will be normalized to %q", c.Stage, ImportClaimStage),
			})
		}
	}
	return t.result()
}
