package conflict

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"terrasync/internal/audit"
	"terrasync/internal/platform/config"
	"terrasync/internal/sequence"
	id "terrasync/pkg/domain"
)

type ConflictServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
	svc   *Service
}

func TestConflictServiceSuite(t *testing.T) {
	suite.Run(t, new(ConflictServiceSuite))
}

func (s *ConflictServiceSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = NewInMemoryStore()
	s.svc = NewService(s.store, sequence.NewInMemory(), config.ConflictRules{
		HighPriorityHours:   24,
		NormalPriorityHours: 72,
		LowPriorityHours:    168,
		AutoIgnoreBelow:     65,
	}, nil, audit.NewPublisher(audit.NewInMemoryStore(), logger), logger)
}

func (s *ConflictServiceSuite) detection(pkgID id.PackageID, confidence Confidence, score float64) Detection {
	return Detection{
		PackageID:  pkgID,
		Type:       TypePersonDuplicate,
		EntityKind: id.KindPerson,
		First:      EntityRef{Source: SourceStaging, ID: "stage-1", Label: "Amal Haddad"},
		Second:     EntityRef{Source: SourceProduction, ID: "prod-1", Label: "Amal Hadad"},
		Score:      score,
		Confidence: confidence,
	}
}

func (s *ConflictServiceSuite) TestOpenAutoIgnoresUnderTheCutoff() {
	pkgID := id.NewPackageID()
	c, err := s.svc.Open(s.ctx, s.detection(pkgID, ConfidenceLow, 58))
	s.Require().NoError(err)

	s.True(c.Closed())
	s.Equal(StatusIgnored, c.Status)
	s.True(c.AutoResolved)
	s.Equal(RuleAutoIgnoreLowConfidence, c.RuleName)
	s.Equal("system", c.ResolvedBy)
	s.Contains(c.Reason, "auto-ignore")

	s.Run("the pair stays on record but never enters the queue", func() {
		stored, err := s.store.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.True(stored.AutoResolved)

		open, err := s.store.CountOpenByPackage(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Zero(open)
	})
}

func (s *ConflictServiceSuite) TestOpenKeepsLowConfidenceAboveTheCutoff() {
	pkgID := id.NewPackageID()
	c, err := s.svc.Open(s.ctx, s.detection(pkgID, ConfidenceLow, 68))
	s.Require().NoError(err)

	s.False(c.Closed())
	s.Equal(StatusPendingReview, c.Status)
	s.False(c.AutoResolved)
}

func (s *ConflictServiceSuite) TestOpenNeverAutoIgnoresHigherConfidence() {
	pkgID := id.NewPackageID()
	c, err := s.svc.Open(s.ctx, s.detection(pkgID, ConfidenceMedium, 58))
	s.Require().NoError(err)
	s.False(c.Closed(), "the rule is gated on confidence, not score alone")
}

func (s *ConflictServiceSuite) TestOpenWithRuleDisabled() {
	disabled := NewService(s.store, sequence.NewInMemory(), config.ConflictRules{
		HighPriorityHours:   24,
		NormalPriorityHours: 72,
		LowPriorityHours:    168,
	}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	c, err := disabled.Open(s.ctx, s.detection(id.NewPackageID(), ConfidenceLow, 58))
	s.Require().NoError(err)
	s.False(c.Closed())
}
