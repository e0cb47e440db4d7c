package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/suite"

	id "terrasync/pkg/domain"
)

type CompatSuite struct {
	suite.Suite
	server map[string]id.SemVer
}

func TestCompatSuite(t *testing.T) {
	suite.Run(t, new(CompatSuite))
}

func (s *CompatSuite) SetupTest() {
	s.server = map[string]id.SemVer{
		"building_type": {Major: 2, Minor: 1, Patch: 0},
		"gender":        {Major: 1, Minor: 0, Patch: 3},
		"relation_type": {Major: 1, Minor: 2, Patch: 0},
	}
}

func (s *CompatSuite) TestMatchingVersionsAreCompatible() {
	result := CheckCompatibility(map[string]string{
		"building_type": "2.1.0",
		"gender":        "1.0.3",
	}, s.server)
	s.True(result.Compatible)
	s.Empty(result.Issues)
}

func (s *CompatSuite) TestMajorMismatchBlocks() {
	result := CheckCompatibility(map[string]string{"building_type": "1.9.0"}, s.server)
	s.False(result.Compatible)
	s.Require().Len(result.Issues, 1)
	s.Equal(SeverityBlocking, result.Issues[0].Severity)
	s.Equal("building_type", result.Issues[0].Vocabulary)
}

func (s *CompatSuite) TestMinorMismatchWarnsOnly() {
	// An older device simply knows fewer values; that never blocks intake.
	result := CheckCompatibility(map[string]string{"relation_type": "1.1.0"}, s.server)
	s.True(result.Compatible)
	s.Require().Len(result.Issues, 1)
	s.Equal(SeverityWarning, result.Issues[0].Severity)
}

func (s *CompatSuite) TestPatchDifferenceIsIgnored() {
	result := CheckCompatibility(map[string]string{"gender": "1.0.9"}, s.server)
	s.True(result.Compatible)
	s.Empty(result.Issues)
}

func (s *CompatSuite) TestUnknownVocabularyBlocks() {
	result := CheckCompatibility(map[string]string{"roof_material": "1.0.0"}, s.server)
	s.False(result.Compatible)
	s.Require().Len(result.Issues, 1)
	s.Equal(SeverityBlocking, result.Issues[0].Severity)
}

func (s *CompatSuite) TestMalformedVersionBlocks() {
	result := CheckCompatibility(map[string]string{"gender": "one.zero"}, s.server)
	s.False(result.Compatible)
	s.Require().Len(result.Issues, 1)
	s.Equal(SeverityBlocking, result.Issues[0].Severity)
}

func (s *CompatSuite) TestIssueOrderIsDeterministic() {
	versions := map[string]string{
		"relation_type": "2.0.0",
		"building_type": "1.0.0",
		"gender":        "3.0.0",
	}
	first := CheckCompatibility(versions, s.server)
	second := CheckCompatibility(versions, s.server)
	s.Equal(first, second)

	s.Require().Len(first.Issues, 3)
	s.Equal("building_type", first.Issues[0].Vocabulary)
	s.Equal("gender", first.Issues[1].Vocabulary)
	s.Equal("relation_type", first.Issues[2].Vocabulary)
}
