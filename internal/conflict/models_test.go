package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type ConflictModelSuite struct {
	suite.Suite
	now time.Time
}

func TestConflictModelSuite(t *testing.T) {
	suite.Run(t, new(ConflictModelSuite))
}

func (s *ConflictModelSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func (s *ConflictModelSuite) pending() *Conflict {
	return &Conflict{
		ID:          id.NewConflictID(),
		Number:      "CNF-000007",
		PackageID:   id.NewPackageID(),
		Type:        TypePersonDuplicate,
		EntityKind:  id.KindPerson,
		Score:       92.5,
		Confidence:  ConfidenceHigh,
		Status:      StatusPendingReview,
		Priority:    PriorityHigh,
		TargetHours: 24,
		DetectedAt:  s.now,
	}
}

func (s *ConflictModelSuite) TestPriorityFor() {
	s.Equal(PriorityHigh, PriorityFor(ConfidenceHigh, 95))
	s.Equal(PriorityNormal, PriorityFor(ConfidenceHigh, 86), "high confidence under 90 is not urgent")
	s.Equal(PriorityNormal, PriorityFor(ConfidenceMedium, 72))
	s.Equal(PriorityNormal, PriorityFor(ConfidenceLow, 71), "score alone can raise priority")
	s.Equal(PriorityLow, PriorityFor(ConfidenceLow, 60))
}

func (s *ConflictModelSuite) TestResolveRequiresAReason() {
	c := s.pending()
	err := c.Resolve(ActionKeepOne, "", "reviewer", nil, s.now)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	s.Equal(StatusPendingReview, c.Status)
}

func (s *ConflictModelSuite) TestKeepOne() {
	c := s.pending()
	s.Require().NoError(c.Resolve(ActionKeepOne, "production record is newer", "reviewer", nil, s.now))
	s.Equal(StatusResolved, c.Status)
	s.Equal(ActionKeepOne, c.Action)
	s.Equal("reviewer", c.ResolvedBy)
	s.Require().NotNil(c.ResolvedAt)
	s.True(c.ResolvedAt.Equal(s.now))
	s.True(c.Closed())
}

func (s *ConflictModelSuite) TestMergeValidation() {
	full := &MergeDetails{
		SurvivingID: "prod-1",
		DiscardedID: "stage-1",
		Provenance:  map[string]string{"phone": "stage-1"},
	}

	s.Run("merge details are mandatory", func() {
		c := s.pending()
		s.ErrorIs(c.Resolve(ActionMerge, "same person", "reviewer", nil, s.now), sentinel.ErrInvalidState)
	})

	s.Run("provenance must not be empty", func() {
		c := s.pending()
		bare := &MergeDetails{SurvivingID: "prod-1", DiscardedID: "stage-1"}
		s.ErrorIs(c.Resolve(ActionMerge, "same person", "reviewer", bare, s.now), sentinel.ErrInvalidState)
	})

	s.Run("complete merge resolves", func() {
		c := s.pending()
		s.Require().NoError(c.Resolve(ActionMerge, "same person", "reviewer", full, s.now))
		s.Equal(StatusResolved, c.Status)
		s.Equal(full, c.Merge)
	})
}

func (s *ConflictModelSuite) TestIgnoreClosesWithoutResolving() {
	c := s.pending()
	s.Require().NoError(c.Resolve(ActionIgnore, "known false positive", "reviewer", nil, s.now))
	s.Equal(StatusIgnored, c.Status)
	s.True(c.Closed())
}

func (s *ConflictModelSuite) TestUnknownActionIsRejected() {
	c := s.pending()
	s.ErrorIs(c.Resolve(Action("delete_both"), "because", "reviewer", nil, s.now), sentinel.ErrInvalidState)
}

func (s *ConflictModelSuite) TestDoubleResolutionFails() {
	c := s.pending()
	s.Require().NoError(c.Resolve(ActionKeepOne, "first pass", "reviewer", nil, s.now))
	s.ErrorIs(c.Resolve(ActionKeepOne, "second pass", "reviewer", nil, s.now), sentinel.ErrInvalidState)
	s.ErrorIs(c.Escalate("too late"), sentinel.ErrInvalidState)
	s.ErrorIs(c.RecordReviewAttempt("reviewer", "too late", s.now), sentinel.ErrInvalidState)
}

func (s *ConflictModelSuite) TestAutoResolve() {
	s.Run("closes as ignored with the rule on record", func() {
		c := s.pending()
		s.Require().NoError(c.AutoResolve(RuleAutoIgnoreLowConfidence, "score under cutoff", s.now))
		s.Equal(StatusIgnored, c.Status)
		s.Equal(ActionIgnore, c.Action)
		s.True(c.AutoResolved)
		s.Equal(RuleAutoIgnoreLowConfidence, c.RuleName)
		s.Equal("system", c.ResolvedBy)
		s.Require().NotNil(c.ResolvedAt)
		s.True(c.Closed())
	})

	s.Run("requires a rule name", func() {
		c := s.pending()
		s.ErrorIs(c.AutoResolve("", "no rule", s.now), sentinel.ErrInvalidState)
		s.Equal(StatusPendingReview, c.Status)
	})

	s.Run("cannot reopen a closed conflict", func() {
		c := s.pending()
		s.Require().NoError(c.Resolve(ActionKeepOne, "reviewed", "reviewer", nil, s.now))
		s.ErrorIs(c.AutoResolve(RuleAutoIgnoreLowConfidence, "too late", s.now), sentinel.ErrInvalidState)
	})

	s.Run("blocks later manual resolution", func() {
		c := s.pending()
		s.Require().NoError(c.AutoResolve(RuleAutoIgnoreLowConfidence, "score under cutoff", s.now))
		s.ErrorIs(c.Resolve(ActionKeepOne, "second look", "reviewer", nil, s.now), sentinel.ErrInvalidState)
	})
}

func (s *ConflictModelSuite) TestEscalateForcesHighPriority() {
	c := s.pending()
	c.Priority = PriorityLow
	s.Require().NoError(c.Escalate("claimant is waiting at the office"))
	s.True(c.Escalated)
	s.Equal(PriorityHigh, c.Priority)
	s.Equal("claimant is waiting at the office", c.EscalatedReason)
}

func (s *ConflictModelSuite) TestOverdue() {
	c := s.pending()

	s.False(c.Overdue(s.now.Add(23*time.Hour)), "inside the 24h window")
	s.True(c.Overdue(s.now.Add(25*time.Hour)))

	s.Require().NoError(c.Resolve(ActionKeepOne, "done", "reviewer", nil, s.now))
	s.False(c.Overdue(s.now.Add(25*time.Hour)), "closed conflicts are never overdue")
}

func (s *ConflictModelSuite) TestReviewHistory() {
	c := s.pending()
	s.Require().NoError(c.RecordReviewAttempt("first@lrd.gov.jo", "needs the paper deed", s.now))
	s.Require().NoError(c.RecordReviewAttempt("second@lrd.gov.jo", "deed scanned, deciding", s.now.Add(time.Hour)))

	s.Equal(2, c.ReviewAttempts)
	s.Require().Len(c.ReviewHistory, 2)
	s.Equal("first@lrd.gov.jo", c.ReviewHistory[0].Reviewer)
	s.Equal(StatusPendingReview, c.Status, "review attempts never change status")
}
