package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"terrasync/internal/container"
	"terrasync/internal/validation"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type StateMachineSuite struct {
	suite.Suite
}

func TestStateMachineSuite(t *testing.T) {
	suite.Run(t, new(StateMachineSuite))
}

func (s *StateMachineSuite) newPackage() *ImportPackage {
	return NewImportPackage("PKG-000042", &container.Manifest{
		FileName:      "export.tsp",
		FileSize:      1024,
		Checksum:      "abc",
		SchemaVersion: "1.0",
	}, id.NewCollectorID(), time.Now())
}

func (s *StateMachineSuite) TestHappyPathTransitions() {
	p := s.newPackage()
	s.Equal(StatusPending, p.Status)

	for _, next := range []Status{
		StatusValidating, StatusStaging, StatusReviewingConflicts,
		StatusReadyToCommit, StatusCommitting, StatusCompleted,
	} {
		s.Require().NoError(p.TransitionTo(next))
		s.Equal(next, p.Status)
	}
	s.True(p.Status.Terminal())
}

func (s *StateMachineSuite) TestIllegalMovesAreRejected() {
	p := s.newPackage()
	err := p.TransitionTo(StatusCommitting)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	s.Equal(StatusPending, p.Status, "a rejected move must not change state")

	s.Require().NoError(p.TransitionTo(StatusValidating))
	s.ErrorIs(p.TransitionTo(StatusCompleted), sentinel.ErrInvalidState)
}

func (s *StateMachineSuite) TestCancelFromAnyNonTerminalState() {
	p := s.newPackage()
	s.Require().NoError(p.TransitionTo(StatusValidating))
	s.Require().NoError(p.TransitionTo(StatusStaging))
	s.Require().NoError(p.Cancel("operator abort"))
	s.Equal(StatusCancelled, p.Status)
	s.Equal("operator abort", p.StatusReason)

	s.ErrorIs(p.Cancel("again"), sentinel.ErrInvalidState)
}

func (s *StateMachineSuite) TestTerminalStatesAdmitNothing() {
	for _, terminal := range []Status{StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusCancelled} {
		s.True(terminal.Terminal())
		s.False(terminal.CanTransitionTo(StatusCancelled))
	}
	s.False(StatusQuarantined.CanTransitionTo(StatusValidating),
		"quarantine recovery is a re-upload, never a transition")
	s.False(StatusValidationFailed.CanTransitionTo(StatusStaging))
}

func (s *StateMachineSuite) TestApplyLevelResults() {
	s.Run("blocking errors settle in validation failed", func() {
		p := s.newPackage()
		s.Require().NoError(p.TransitionTo(StatusValidating))
		s.Require().NoError(p.ApplyLevelResults([]validation.LevelResult{
			{Validator: "reference-resolution", Level: 2, ErrorCount: 3},
			{Validator: "spatial", Level: 5, WarningCount: 1},
		}))
		s.Equal(StatusValidationFailed, p.Status)
		s.Equal(3, p.ErrorCount)
		s.Equal(1, p.WarningCount)
	})

	s.Run("warnings alone advance to staging", func() {
		p := s.newPackage()
		s.Require().NoError(p.TransitionTo(StatusValidating))
		s.Require().NoError(p.ApplyLevelResults([]validation.LevelResult{
			{Validator: "spatial", Level: 5, WarningCount: 2},
		}))
		s.Equal(StatusStaging, p.Status)
		s.Equal(0, p.ErrorCount)
		s.Equal(2, p.WarningCount)
	})
}

func (s *StateMachineSuite) TestRecordConflicts() {
	s.Run("zero conflicts goes straight to ready", func() {
		p := s.newPackage()
		s.Require().NoError(p.TransitionTo(StatusValidating))
		s.Require().NoError(p.TransitionTo(StatusStaging))
		s.Require().NoError(p.RecordConflicts(0))
		s.Equal(StatusReadyToCommit, p.Status)
		s.True(p.ConflictsResolved)
	})

	s.Run("open conflicts require review", func() {
		p := s.newPackage()
		s.Require().NoError(p.TransitionTo(StatusValidating))
		s.Require().NoError(p.TransitionTo(StatusStaging))
		s.Require().NoError(p.RecordConflicts(2))
		s.Equal(StatusReviewingConflicts, p.Status)
		s.False(p.ConflictsResolved)
		s.Equal(2, p.ConflictCount)

		s.Require().NoError(p.MarkConflictsResolved())
		s.Equal(StatusReadyToCommit, p.Status)
		s.True(p.ConflictsResolved)
	})
}

func (s *StateMachineSuite) TestFinishCommit() {
	ready := func() *ImportPackage {
		p := s.newPackage()
		s.Require().NoError(p.TransitionTo(StatusValidating))
		s.Require().NoError(p.TransitionTo(StatusStaging))
		s.Require().NoError(p.RecordConflicts(0))
		s.Require().NoError(p.BeginCommit())
		return p
	}

	s.Run("all records promoted completes", func() {
		p := ready()
		s.Require().NoError(p.FinishCommit(10, 0, 0))
		s.Equal(StatusCompleted, p.Status)
		s.Empty(p.StatusReason)
	})

	s.Run("skips do not spoil completion", func() {
		p := ready()
		s.Require().NoError(p.FinishCommit(8, 0, 2))
		s.Equal(StatusCompleted, p.Status)
	})

	s.Run("nothing promoted fails", func() {
		p := ready()
		s.Require().NoError(p.FinishCommit(0, 5, 0))
		s.Equal(StatusFailed, p.Status)
	})

	s.Run("failed attempt after earlier promotions is partial", func() {
		// Earlier attempt promoted four records, this one failed the rest.
		p := ready()
		p.CommitSucceeded = 4
		s.Require().NoError(p.FinishCommit(0, 3, 0))
		s.Equal(StatusPartiallyCompleted, p.Status)
	})
}
