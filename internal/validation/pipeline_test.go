package validation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/suite"

	"terrasync/internal/container"
	"terrasync/internal/platform/config"
	"terrasync/internal/staging"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
)

type PipelineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *staging.InMemoryStore
	logger *slog.Logger
	rules  config.Rules
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = staging.NewInMemoryStore()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.rules = config.DefaultRules()
}

func (s *PipelineSuite) stage(payload container.Payload) id.PackageID {
	pkgID := id.NewPackageID()
	_, err := staging.NewLoader(s.store).Load(s.ctx, pkgID, &payload)
	s.Require().NoError(err)
	return pkgID
}

func (s *PipelineSuite) chain() []Validator {
	vocabs := vocabulary.NewService(vocabulary.NewInMemoryStore(), nil, s.logger)
	return DefaultChain(s.rules, vocabs, s.logger)
}

func floatPtr(v float64) *float64 { return &v }

// brokenBatch carries one finding of each severity: a building with an
// unrecognized geometry, a second building with a malformed composite and a
// half coordinate pair, and a duplicated unit code.
func brokenBatch() container.Payload {
	return container.Payload{
		Buildings: []container.Building{
			{
				OriginalID:    "b-1",
				CompositeCode: "12345678901234",
				Geometry:      "BLOB(1 2)",
			},
			{
				OriginalID:    "b-2",
				CompositeCode: "9999",
				Latitude:      floatPtr(31.0),
			},
		},
		Units: []container.Unit{
			{OriginalID: "u-1", BuildingOriginalID: "b-1", UnitCode: "A-1"},
			{OriginalID: "u-2", BuildingOriginalID: "b-1", UnitCode: "A-1"},
		},
	}
}

func (s *PipelineSuite) TestLevelsRunInAscendingOrder() {
	pkgID := s.stage(brokenBatch())

	// Deliberately passed out of order; the pipeline sorts by level.
	p := NewPipeline(s.store, nil, s.logger,
		NewIdentifierValidator(s.rules.CompositeIDLength),
		NewReferenceValidator(),
		NewSpatialValidator(s.rules.Bounds),
	)
	results, err := p.Run(s.ctx, pkgID)
	s.Require().NoError(err)
	s.Require().Len(results, 3)
	s.Equal(2, results[0].Level)
	s.Equal(5, results[1].Level)
	s.Equal(8, results[2].Level)
}

func (s *PipelineSuite) TestErrorsInvalidateWarningsDoNot() {
	pkgID := s.stage(brokenBatch())

	p := NewPipeline(s.store, nil, s.logger, s.chain()...)
	results, err := p.Run(s.ctx, pkgID)
	s.Require().NoError(err)
	s.True(Blocking(results))

	records, err := s.store.ListByPackage(s.ctx, pkgID)
	s.Require().NoError(err)
	byOriginal := make(map[string]*staging.Record, len(records))
	for _, r := range records {
		byOriginal[r.OriginalID] = r
	}

	s.Run("unrecognized geometry is only a warning", func() {
		r := byOriginal["b-1"]
		s.Equal(staging.StatusWarning, r.Status)
		s.Empty(r.Errors)
		s.Require().Len(r.Warnings, 1)
		s.Equal("GEOMETRY_UNRECOGNIZED", r.Warnings[0].Code)
	})

	s.Run("malformed composite and half pair both block", func() {
		r := byOriginal["b-2"]
		s.Equal(staging.StatusInvalid, r.Status)
		s.Len(r.Errors, 2)
		s.ErrorContains(r.Approve(), "blocking errors")
	})

	s.Run("both sides of a unit code clash are invalid", func() {
		s.Equal(staging.StatusInvalid, byOriginal["u-1"].Status)
		s.Equal(staging.StatusInvalid, byOriginal["u-2"].Status)
	})
}

func (s *PipelineSuite) TestCleanRecordsFinalizeValid() {
	pkgID := s.stage(container.Payload{
		Buildings: []container.Building{{
			OriginalID:    "b-1",
			CompositeCode: "12345678901234",
			Latitude:      floatPtr(31.95),
			Longitude:     floatPtr(35.91),
			Geometry:      "POINT(35.91 31.95)",
		}},
	})

	p := NewPipeline(s.store, nil, s.logger, s.chain()...)
	results, err := p.Run(s.ctx, pkgID)
	s.Require().NoError(err)
	s.False(Blocking(results))

	records, err := s.store.ListByPackage(s.ctx, pkgID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(staging.StatusValid, records[0].Status)
	s.Require().NoError(records[0].Approve())
	s.True(records[0].Committable())
}

func (s *PipelineSuite) TestLevelSummaryGolden() {
	pkgID := s.stage(brokenBatch())

	p := NewPipeline(s.store, nil, s.logger, s.chain()...)
	results, err := p.Run(s.ctx, pkgID)
	s.Require().NoError(err)

	// Durations are wall clock; zero them for a stable snapshot.
	for i := range results {
		results[i].Duration = 0
	}
	raw, err := json.MarshalIndent(results, "", "  ")
	s.Require().NoError(err)

	g := goldie.New(s.T())
	g.Assert(s.T(), "level_summary", raw)
}
