package dedupe

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"terrasync/internal/conflict"
	"terrasync/internal/platform/config"
)

type ScoringSuite struct {
	suite.Suite
	rules config.DedupeRules
}

func TestScoringSuite(t *testing.T) {
	suite.Run(t, new(ScoringSuite))
}

func (s *ScoringSuite) SetupTest() {
	s.rules = config.DefaultRules().Dedupe
}

func (s *ScoringSuite) TestFullAgreementScoresHundred() {
	a := Features{NationalID: "9871234567", FullName: "Amal Haddad", Phone: "+962791234567"}
	b := Features{NationalID: "9871234567", FullName: "amal  haddad", Phone: "0791234567"}

	m := Score(a, b, s.rules)
	s.InDelta(100, m.Score, 1e-9)
	s.True(m.ExactAgreement)
	s.True(m.Reportable)
	s.Equal(conflict.ConfidenceHigh, m.Confidence)
	s.Len(m.Criteria, 3)
}

func (s *ScoringSuite) TestScoreIsSymmetric() {
	a := Features{NationalID: "9871234567", FullName: "Amal Haddad"}
	b := Features{NationalID: "9871234568", FullName: "Amal Hadad", Phone: "0791234567"}

	ab := Score(a, b, s.rules)
	ba := Score(b, a, s.rules)
	s.InDelta(ab.Score, ba.Score, 1e-9)
	s.Equal(ab.Confidence, ba.Confidence)
	s.Equal(ab.ExactAgreement, ba.ExactAgreement)
}

func (s *ScoringSuite) TestHighConfidenceNeedsAnExactIdentifier() {
	// Name and phone agree perfectly but neither side shares a hard id, so
	// the score alone cannot reach high confidence.
	a := Features{FullName: "Amal Haddad", Phone: "0791234567"}
	b := Features{FullName: "Amal Haddad", Phone: "+962791234567"}

	m := Score(a, b, s.rules)
	s.InDelta(100, m.Score, 1e-9)
	s.False(m.ExactAgreement)
	s.Equal(conflict.ConfidenceMedium, m.Confidence)
}

func (s *ScoringSuite) TestCompositeCodeIsAHardIdentifier() {
	a := Features{CompositeCode: "12345678901234"}
	b := Features{CompositeCode: "12345678901234"}

	m := Score(a, b, s.rules)
	s.InDelta(100, m.Score, 1e-9)
	s.True(m.ExactAgreement)
	s.Equal(conflict.ConfidenceHigh, m.Confidence)
}

func (s *ScoringSuite) TestSparseRecordsAreNotPenalized() {
	// Only the name is present on both sides; the score normalizes over
	// the name weight alone instead of treating absent fields as misses.
	a := Features{FullName: "Amal Haddad"}
	b := Features{NationalID: "9871234567", FullName: "Amal Haddad", Phone: "0791234567"}

	m := Score(a, b, s.rules)
	s.InDelta(100, m.Score, 1e-9)
	s.Len(m.Criteria, 1)
	s.Equal(conflict.ConfidenceMedium, m.Confidence)
}

func (s *ScoringSuite) TestWeakSimilarityIsNotReportable() {
	a := Features{FullName: "Amal Haddad"}
	b := Features{FullName: "Yusuf Qasem"}

	m := Score(a, b, s.rules)
	s.Less(m.Score, s.rules.ReportThreshold)
	s.False(m.Reportable)
	s.Empty(m.Confidence)
}

func (s *ScoringSuite) TestNoComparableFields() {
	a := Features{NationalID: "9871234567"}
	b := Features{Phone: "0791234567"}

	m := Score(a, b, s.rules)
	s.Zero(m.Score)
	s.False(m.Reportable)
	s.Empty(m.Criteria)
}
