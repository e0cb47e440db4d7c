package container

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CodecSuite struct {
	suite.Suite
	codec *Codec
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) SetupSuite() {
	codec, err := NewCodec([]string{"1.0", "1.1"})
	s.Require().NoError(err)
	s.codec = codec
}

func (s *CodecSuite) TestSupports() {
	s.True(s.codec.Supports("1.0"))
	s.True(s.codec.Supports("1.1"))
	s.False(s.codec.Supports("2.0"))
}

func (s *CodecSuite) TestUnknownVersionFailsCompilation() {
	_, err := NewCodec([]string{"9.9"})
	s.ErrorContains(err, "no embedded schema")
}

func (s *CodecSuite) TestDecodeValidPayload() {
	raw := []byte(`{
		"buildings": [{"original_id": "b-1", "composite_code": "12345678901234", "latitude": 31.95, "longitude": 35.91}],
		"units": [{"original_id": "u-1", "building_original_id": "b-1", "unit_code": "APT-3"}],
		"persons": [{"original_id": "p-1", "full_name": "Amal Haddad"}]
	}`)
	payload, err := s.codec.Decode("1.0", raw)
	s.Require().NoError(err)
	s.Equal(3, payload.TotalRecords())
	s.Require().Len(payload.Buildings, 1)
	s.Require().NotNil(payload.Buildings[0].Latitude)
	s.InDelta(31.95, *payload.Buildings[0].Latitude, 1e-9)
	s.Empty(payload.Persons[0].HouseholdOriginalID)
}

func (s *CodecSuite) TestDecodeRejectsMissingRequiredField() {
	raw := []byte(`{"buildings": [{"original_id": "b-1"}]}`)
	_, err := s.codec.Decode("1.0", raw)
	s.ErrorContains(err, "violates schema")
}

func (s *CodecSuite) TestDecodeRejectsUnknownTopLevelKey() {
	raw := []byte(`{"parcels": []}`)
	_, err := s.codec.Decode("1.0", raw)
	s.ErrorContains(err, "violates schema")
}

func (s *CodecSuite) TestDecodeRejectsMalformedJSON() {
	_, err := s.codec.Decode("1.0", []byte(`{"buildings": [`))
	s.ErrorContains(err, "malformed payload JSON")
}

func (s *CodecSuite) TestDecodeUnsupportedVersion() {
	_, err := s.codec.Decode("3.0", []byte(`{}`))
	s.ErrorContains(err, "unsupported schema version")
}

func (s *CodecSuite) TestCount() {
	p := &Payload{
		Persons: []Person{{OriginalID: "p-1"}, {OriginalID: "p-2"}},
		Claims:  []Claim{{OriginalID: "c-1"}},
	}
	s.Equal(2, p.Count("person"))
	s.Equal(1, p.Count("claim"))
	s.Equal(0, p.Count("building"))
	s.Equal(0, p.Count("parcel"), "unknown kinds count zero")
}
