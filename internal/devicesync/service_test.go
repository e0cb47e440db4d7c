package devicesync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"terrasync/internal/audit"
	"terrasync/internal/commit"
	"terrasync/internal/conflict"
	"terrasync/internal/container"
	"terrasync/internal/dedupe"
	"terrasync/internal/ingest"
	"terrasync/internal/platform/config"
	"terrasync/internal/production"
	"terrasync/internal/sequence"
	"terrasync/internal/staging"
	"terrasync/internal/validation"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type SyncServiceSuite struct {
	suite.Suite
	ctx context.Context

	registry  *production.InMemoryStore
	sessions  *InMemorySessionStore
	service   *Service
	collector id.CollectorID

	pendingAssignment     id.AssignmentID
	transferredAssignment id.AssignmentID
}

func TestSyncServiceSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceSuite))
}

func (s *SyncServiceSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rules := config.DefaultRules()
	s.collector = id.NewCollectorID()

	s.registry = production.NewInMemoryStore()
	buildingID := id.NewEntityID()
	s.registry.AddBuilding(production.Building{ID: buildingID, CompositeCode: "12345678901234"})
	s.registry.AddUnit(production.Unit{ID: id.NewEntityID(), BuildingID: buildingID, UnitCode: "APT-3"})

	s.pendingAssignment = id.NewAssignmentID()
	s.registry.AddAssignment(&production.Assignment{
		ID:             s.pendingAssignment,
		CollectorID:    s.collector,
		BuildingID:     buildingID,
		AreaName:       "Jabal Amman",
		TransferStatus: production.TransferPending,
	})
	s.transferredAssignment = id.NewAssignmentID()
	s.registry.AddAssignment(&production.Assignment{
		ID:             s.transferredAssignment,
		CollectorID:    s.collector,
		BuildingID:     buildingID,
		AreaName:       "Jabal Amman",
		TransferStatus: production.TransferTransferred,
	})

	vocabStore := vocabulary.NewInMemoryStore()
	s.Require().NoError(vocabStore.Save(s.ctx, &vocabulary.Vocabulary{
		Name:    "gender",
		Version: id.SemVer{Major: 1, Minor: 0, Patch: 0},
		Values:  []vocabulary.VocabularyValue{{Code: 1}, {Code: 2}},
	}))
	vocabSvc := vocabulary.NewService(vocabStore, nil, logger)

	stagingStore := staging.NewInMemoryStore()
	seq := sequence.NewInMemory()
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), logger)
	codec, err := container.NewCodec(rules.SchemaVersions)
	s.Require().NoError(err)
	pipeline := validation.NewPipeline(stagingStore, nil, logger,
		validation.DefaultChain(rules, vocabSvc, logger)...)
	conflicts := conflict.NewService(conflict.NewInMemoryStore(), seq, rules.Conflict, nil, auditor, logger)
	detector := dedupe.NewEngine(stagingStore, s.registry, conflicts, rules.Dedupe, logger)
	committer := commit.NewEngine(stagingStore, commit.NewInMemoryStore(s.registry), nil, logger)
	importer := ingest.NewService(ingest.NewInMemoryStore(), stagingStore, staging.NewLoader(stagingStore),
		codec, ingest.NewVerifier(codec, nil), vocabSvc, pipeline, detector, committer,
		seq, nil, auditor, logger)
	conflicts.SetPackageAdvancer(importer)

	s.sessions = NewInMemorySessionStore()
	s.service = NewService(s.sessions, s.registry, vocabSvc, importer, nil, auditor, logger)
}

func (s *SyncServiceSuite) download() *DownloadResponse {
	resp, err := s.service.DownloadAssignments(s.ctx, s.collector, "tablet-07", "Android 14; Chrome 120")
	s.Require().NoError(err)
	return resp
}

func (s *SyncServiceSuite) TestDownloadAssignments() {
	resp := s.download()

	s.Require().Len(resp.Bundles, 1, "transferred assignments are not re-sent")
	bundle := resp.Bundles[0]
	s.Equal(s.pendingAssignment, bundle.Assignment.ID)
	s.Equal("12345678901234", bundle.Building.CompositeCode)
	s.Require().Len(bundle.Units, 1)

	s.Require().Len(resp.Vocabularies, 1)
	s.Equal(map[string]string{"gender": "1.0.0"}, resp.Versions)

	session, err := s.sessions.Get(s.ctx, resp.SessionID)
	s.Require().NoError(err)
	s.Equal(SessionActive, session.Status)
	s.Equal(1, session.AssignmentsDownloaded)
	s.Equal(resp.Versions, session.VocabVersionsSent)
}

func (s *SyncServiceSuite) TestAcknowledge() {
	resp := s.download()
	unknown := id.NewAssignmentID()

	result, err := s.service.Acknowledge(s.ctx, resp.SessionID,
		[]id.AssignmentID{s.pendingAssignment, unknown})
	s.Require().NoError(err)
	s.Equal(1, result.AcknowledgedCount)
	s.Equal(1, result.FailedCount)
	s.Equal([]id.AssignmentID{unknown}, result.FailedAssignmentIDs)

	s.Run("repeat acknowledgment is a counted-nowhere no-op", func() {
		again, err := s.service.Acknowledge(s.ctx, resp.SessionID,
			[]id.AssignmentID{s.pendingAssignment})
		s.Require().NoError(err)
		s.Zero(again.AcknowledgedCount)
		s.Zero(again.FailedCount)
	})

	s.Run("acknowledged assignments leave the download set", func() {
		s.Empty(s.download().Bundles)
	})

	session, err := s.sessions.Get(s.ctx, resp.SessionID)
	s.Require().NoError(err)
	s.Equal(1, session.AssignmentsAcked)
}

func (s *SyncServiceSuite) TestCloseSession() {
	resp := s.download()

	session, err := s.service.CloseSession(s.ctx, resp.SessionID, "")
	s.Require().NoError(err)
	s.Equal(SessionCompleted, session.Status)
	s.Require().NotNil(session.CompletedAt)
	s.Empty(session.ErrorMessage)

	s.Run("the closed status is persisted", func() {
		stored, err := s.sessions.Get(s.ctx, resp.SessionID)
		s.Require().NoError(err)
		s.Equal(SessionCompleted, stored.Status)
		s.Require().NotNil(stored.CompletedAt)
	})

	s.Run("a session closes exactly once", func() {
		_, err := s.service.CloseSession(s.ctx, resp.SessionID, "")
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *SyncServiceSuite) TestCloseSessionWithDeviceError() {
	resp := s.download()

	session, err := s.service.CloseSession(s.ctx, resp.SessionID, "tablet battery died mid-transfer")
	s.Require().NoError(err)
	s.Equal(SessionFailed, session.Status)
	s.Equal("tablet battery died mid-transfer", session.ErrorMessage)
	s.Require().NotNil(session.CompletedAt)
}

func (s *SyncServiceSuite) TestUploadPackage() {
	resp := s.download()

	payload := container.Payload{
		Buildings: []container.Building{{OriginalID: "b-1", CompositeCode: "98765432109876"}},
	}
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	sum := sha256.Sum256(raw)
	manifest := &container.Manifest{
		FileName:           "export.tsp",
		CollectorID:        s.collector.String(),
		Checksum:           hex.EncodeToString(sum[:]),
		SchemaVersion:      "1.0",
		RecordCounts:       map[string]int{"building": 1},
		VocabularyVersions: map[string]string{"gender": "1.0.0"},
	}

	outcome, err := s.service.UploadPackage(s.ctx, resp.SessionID, manifest, raw, s.collector)
	s.Require().NoError(err)
	s.True(outcome.Accepted)

	s.Run("a corrupted re-send is quarantined, not accepted", func() {
		bad := *manifest
		bad.Checksum = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
		outcome, err := s.service.UploadPackage(s.ctx, resp.SessionID, &bad, raw, s.collector)
		s.Require().NoError(err)
		s.True(outcome.Quarantined)
	})

	session, err := s.sessions.Get(s.ctx, resp.SessionID)
	s.Require().NoError(err)
	s.Equal(1, session.PackagesUploaded)
	s.Equal(1, session.PackagesFailed, "quarantined uploads count as failed on the session")
}
