package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"terrasync/internal/audit"
	"terrasync/internal/commit"
	"terrasync/internal/conflict"
	"terrasync/internal/container"
	"terrasync/internal/dedupe"
	"terrasync/internal/platform/config"
	"terrasync/internal/production"
	"terrasync/internal/sequence"
	"terrasync/internal/staging"
	"terrasync/internal/validation"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
)

// ImportFlowSuite wires the whole pipeline over in-memory stores and walks a
// container from upload to production, the same graph serve assembles.
type ImportFlowSuite struct {
	suite.Suite
	ctx context.Context

	registry  *production.InMemoryStore
	stagingDB *staging.InMemoryStore
	packages  *InMemoryStore
	conflicts *conflict.Service
	service   *Service

	collector id.CollectorID
}

func TestImportFlowSuite(t *testing.T) {
	suite.Run(t, new(ImportFlowSuite))
}

func (s *ImportFlowSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rules := config.DefaultRules()
	s.collector = id.NewCollectorID()

	s.registry = production.NewInMemoryStore()
	// A production resident who will collide with staged person p-1.
	s.registry.AddPerson(production.Person{
		ID:         id.NewEntityID(),
		NationalID: "9871234567",
		FullName:   "Amal Haddad",
		Phone:      "0791234567",
	})

	vocabStore := vocabulary.NewInMemoryStore()
	s.Require().NoError(vocabStore.Save(s.ctx, &vocabulary.Vocabulary{
		Name:    "gender",
		LabelEN: "Gender",
		Version: id.SemVer{Major: 1, Minor: 0, Patch: 0},
		Values: []vocabulary.VocabularyValue{
			{Code: 1, LabelEN: "Male"},
			{Code: 2, LabelEN: "Female"},
		},
	}))
	vocabSvc := vocabulary.NewService(vocabStore, nil, logger)

	s.stagingDB = staging.NewInMemoryStore()
	s.packages = NewInMemoryStore()
	seq := sequence.NewInMemory()
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), logger)

	codec, err := container.NewCodec(rules.SchemaVersions)
	s.Require().NoError(err)

	pipeline := validation.NewPipeline(s.stagingDB, nil, logger,
		validation.DefaultChain(rules, vocabSvc, logger)...)

	s.conflicts = conflict.NewService(conflict.NewInMemoryStore(), seq, rules.Conflict, nil, auditor, logger)
	detector := dedupe.NewEngine(s.stagingDB, s.registry, s.conflicts, rules.Dedupe, logger)
	committer := commit.NewEngine(s.stagingDB, commit.NewInMemoryStore(s.registry), nil, logger)

	s.service = NewService(s.packages, s.stagingDB, staging.NewLoader(s.stagingDB),
		codec, NewVerifier(codec, nil), vocabSvc, pipeline, detector, committer,
		seq, nil, auditor, logger)
	s.conflicts.SetPackageAdvancer(s.service)
}

func floatPtr(v float64) *float64 { return &v }

// fieldPayload is one clean survey batch: a building with two households'
// worth of people is overkill, so it carries one of everything plus a second
// person whose gender code the server vocabulary does not know.
func (s *ImportFlowSuite) fieldPayload() container.Payload {
	return container.Payload{
		Buildings: []container.Building{{
			OriginalID:    "b-1",
			CompositeCode: "12345678901234",
			Address:       "Jabal Amman, Rainbow St 14",
			Latitude:      floatPtr(31.95),
			Longitude:     floatPtr(35.91),
		}},
		Units: []container.Unit{{
			OriginalID:         "u-1",
			BuildingOriginalID: "b-1",
			UnitCode:           "APT-3",
			Floor:              2,
		}},
		Persons: []container.Person{
			{
				OriginalID:          "p-1",
				NationalID:          "9871234567",
				FullName:            "Amal Haddad",
				Phone:               "+962791234567",
				GenderCode:          1,
				HouseholdOriginalID: "h-1",
			},
			{
				OriginalID:          "p-2",
				FullName:            "Yusuf Qasem",
				GenderCode:          3,
				HouseholdOriginalID: "h-1",
			},
		},
		Households: []container.Household{{
			OriginalID:           "h-1",
			HeadPersonOriginalID: "p-1",
			DeclaredSize:         2,
			MaleCount:            1,
			FemaleCount:          1,
		}},
		Relations: []container.Relation{{
			OriginalID:       "r-1",
			PersonOriginalID: "p-1",
			UnitOriginalID:   "u-1",
			RelationCode:     1,
			SharePercent:     100,
		}},
		Evidence: []container.Evidence{{
			OriginalID:         "e-1",
			RelationOriginalID: "r-1",
			FileRef:            "docs/deed-e-1.pdf",
		}},
		Claims: []container.Claim{{
			OriginalID:         "c-1",
			ClaimantOriginalID: "p-1",
			UnitOriginalID:     "u-1",
			Status:             "submitted",
			Stage:              "intake",
		}},
		Surveys: []container.Survey{{
			OriginalID:         "s-1",
			BuildingOriginalID: "b-1",
			SurveyedAt:         time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		}},
	}
}

func (s *ImportFlowSuite) manifestFor(raw []byte) *container.Manifest {
	sum := sha256.Sum256(raw)
	return &container.Manifest{
		FileName:      "export-20260314.tsp",
		FileSize:      int64(len(raw)),
		CollectorID:   s.collector.String(),
		DeviceID:      "tablet-07",
		Checksum:      hex.EncodeToString(sum[:]),
		SchemaVersion: "1.0",
		RecordCounts: map[string]int{
			"building": 1, "unit": 1, "person": 2, "household": 1,
			"relation": 1, "evidence": 1, "claim": 1, "survey": 1,
		},
		VocabularyVersions: map[string]string{"gender": "1.0.0"},
	}
}

func (s *ImportFlowSuite) TestFullImportFlow() {
	raw, err := json.Marshal(s.fieldPayload())
	s.Require().NoError(err)

	var pkgID id.PackageID

	s.Run("upload stages and lands in conflict review", func() {
		outcome, err := s.service.Accept(s.ctx, s.manifestFor(raw), raw, s.collector)
		s.Require().NoError(err)
		s.True(outcome.Accepted)
		s.False(outcome.Duplicate)
		s.False(outcome.Quarantined)
		pkgID = outcome.PackageID

		pkg, err := s.service.Get(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Equal(StatusReviewingConflicts, pkg.Status)
		s.Equal(0, pkg.ErrorCount)
		s.Equal(1, pkg.WarningCount, "unknown gender code warns, nothing else")
		s.Equal(1, pkg.ConflictCount)
	})

	s.Run("the collision is high confidence and high priority", func() {
		open, err := s.conflicts.ListByPackage(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Require().Len(open, 1)
		c := open[0]
		s.Equal(id.KindPerson, c.EntityKind)
		s.Equal(conflict.ConfidenceHigh, c.Confidence)
		s.Equal(conflict.PriorityHigh, c.Priority)
		s.InDelta(100, c.Score, 0.01, "identical id, name and phone")
	})

	s.Run("approval covers every staged record", func() {
		approved, err := s.service.ApproveRecords(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Equal(9, approved)
	})

	s.Run("resolving the last conflict readies the package", func() {
		open, err := s.conflicts.ListByPackage(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Require().Len(open, 1)

		_, err = s.conflicts.Resolve(s.ctx, open[0].ID, conflict.ActionKeepOne,
			"production record is authoritative", "reviewer@lrd.gov.jo", nil)
		s.Require().NoError(err)

		pkg, err := s.service.Get(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Equal(StatusReadyToCommit, pkg.Status)
		s.True(pkg.ConflictsResolved)
	})

	s.Run("commit promotes everything and remaps references", func() {
		pkg, err := s.service.Commit(s.ctx, pkgID)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, pkg.Status)
		s.Equal(9, pkg.CommitSucceeded)

		persons, err := s.registry.ListPersons(s.ctx)
		s.Require().NoError(err)
		s.Len(persons, 3, "one seeded resident plus two promoted")

		buildings, err := s.registry.ListBuildings(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(buildings, 1)
		s.Equal("12345678901234", buildings[0].CompositeCode)

		units, err := s.registry.ListUnitsByBuilding(s.ctx, buildings[0].ID)
		s.Require().NoError(err)
		s.Require().Len(units, 1)
		s.Equal("APT-3", units[0].UnitCode)

		records, err := s.stagingDB.ListByPackage(s.ctx, pkgID)
		s.Require().NoError(err)
		for _, r := range records {
			s.NotNil(r.ProductionID, "record %s/%s missing production id", r.Kind, r.OriginalID)
		}
	})
}

func (s *ImportFlowSuite) TestDuplicateChecksumIsReported() {
	raw, err := json.Marshal(s.fieldPayload())
	s.Require().NoError(err)

	first, err := s.service.Accept(s.ctx, s.manifestFor(raw), raw, s.collector)
	s.Require().NoError(err)
	s.True(first.Accepted)

	again, err := s.service.Accept(s.ctx, s.manifestFor(raw), raw, s.collector)
	s.Require().NoError(err)
	s.True(again.Duplicate)
	s.False(again.Accepted)
	s.Equal(first.PackageID, again.PackageID, "duplicates point at the original import")
}

func (s *ImportFlowSuite) TestCorruptPayloadIsQuarantined() {
	raw, err := json.Marshal(s.fieldPayload())
	s.Require().NoError(err)
	m := s.manifestFor(raw)
	m.Checksum = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

	outcome, err := s.service.Accept(s.ctx, m, raw, s.collector)
	s.Require().NoError(err)
	s.True(outcome.Quarantined)
	s.Equal(StatusQuarantined, outcome.Status)

	pkg, err := s.service.Get(s.ctx, outcome.PackageID)
	s.Require().NoError(err)
	s.Equal(StatusQuarantined, pkg.Status)
	s.Contains(pkg.StatusReason, "integrity")
}

func (s *ImportFlowSuite) TestVocabularyMajorMismatchQuarantines() {
	raw, err := json.Marshal(s.fieldPayload())
	s.Require().NoError(err)
	m := s.manifestFor(raw)
	m.VocabularyVersions = map[string]string{"gender": "2.0.0"}

	outcome, err := s.service.Accept(s.ctx, m, raw, s.collector)
	s.Require().NoError(err)
	s.True(outcome.Quarantined)
	s.Contains(outcome.Message, "gender")
}

func (s *ImportFlowSuite) TestUnresolvedReferenceFailsValidation() {
	orphan := container.Payload{
		Units: []container.Unit{{
			OriginalID:         "u-9",
			BuildingOriginalID: "b-missing",
			UnitCode:           "SHOP-1",
		}},
	}
	raw, err := json.Marshal(orphan)
	s.Require().NoError(err)
	m := s.manifestFor(raw)
	m.RecordCounts = map[string]int{"unit": 1}

	outcome, err := s.service.Accept(s.ctx, m, raw, s.collector)
	s.Require().NoError(err)
	s.True(outcome.Accepted)
	s.Equal(StatusValidationFailed, outcome.Status)

	pkg, err := s.service.Get(s.ctx, outcome.PackageID)
	s.Require().NoError(err)
	s.Equal(1, pkg.ErrorCount)
	s.Zero(pkg.ConflictCount, "detection never ran")
}

func (s *ImportFlowSuite) TestCancelDiscardsStagingPartition() {
	raw, err := json.Marshal(s.fieldPayload())
	s.Require().NoError(err)

	outcome, err := s.service.Accept(s.ctx, s.manifestFor(raw), raw, s.collector)
	s.Require().NoError(err)

	pkg, err := s.service.Cancel(s.ctx, outcome.PackageID, "wrong district uploaded")
	s.Require().NoError(err)
	s.Equal(StatusCancelled, pkg.Status)
	s.Equal("wrong district uploaded", pkg.StatusReason)

	records, err := s.stagingDB.ListByPackage(s.ctx, outcome.PackageID)
	s.Require().NoError(err)
	s.Empty(records)
}
