package dedupe

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type SimilaritySuite struct {
	suite.Suite
}

func TestSimilaritySuite(t *testing.T) {
	suite.Run(t, new(SimilaritySuite))
}

func (s *SimilaritySuite) TestNormalizeName() {
	s.Equal("amal haddad", NormalizeName("  Amal   HADDAD "))
	s.Equal("", NormalizeName("   "))
}

func (s *SimilaritySuite) TestNormalizePhone() {
	s.Equal("962791234567", NormalizePhone("+962 79 123-4567"))
	s.Equal("", NormalizePhone("ext."))
}

func (s *SimilaritySuite) TestPhonesMatch() {
	s.Run("identical after normalization", func() {
		s.True(PhonesMatch("079 123 4567", "0791234567"))
	})

	s.Run("country code prefix tolerated", func() {
		s.True(PhonesMatch("+962791234567", "0791234567"))
	})

	s.Run("different subscribers", func() {
		s.False(PhonesMatch("0791234567", "0797654321"))
	})

	s.Run("short numbers never fall back", func() {
		s.False(PhonesMatch("4567", "234567"))
	})

	s.Run("empty side never matches", func() {
		s.False(PhonesMatch("", "0791234567"))
	})
}

func (s *SimilaritySuite) TestJaroWinkler() {
	s.Run("identical strings", func() {
		s.InDelta(1.0, JaroWinkler("amal haddad", "amal haddad"), 1e-9)
	})

	s.Run("empty input", func() {
		s.Zero(JaroWinkler("", "amal"))
		s.Zero(JaroWinkler("amal", ""))
	})

	s.Run("no common characters", func() {
		s.Zero(JaroWinkler("abc", "xyz"))
	})

	s.Run("classic reference pair", func() {
		// Winkler's own example: jaro 0.944, shared prefix "mar".
		s.InDelta(0.9611, JaroWinkler("martha", "marhta"), 0.001)
	})

	s.Run("prefix bonus favors shared beginnings", func() {
		withPrefix := JaroWinkler("dixon", "dixie")
		s.Greater(withPrefix, jaroSimilarity([]rune("dixon"), []rune("dixie")))
	})

	s.Run("arabic names compare by rune", func() {
		s.InDelta(1.0, JaroWinkler("أمل حداد", "أمل حداد"), 1e-9)
		// Same name with a bare alif differs by a single rune.
		s.Greater(JaroWinkler("أمل حداد", "امل حداد"), 0.85)
	})
}
