package devicesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"terrasync/internal/audit"
	"terrasync/internal/container"
	"terrasync/internal/ingest"
	"terrasync/internal/platform/metrics"
	"terrasync/internal/production"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
	"terrasync/pkg/requestcontext"
)

// Service implements the three sync protocol operations.
type Service struct {
	sessions    SessionStore
	assignments production.AssignmentStore
	vocabs      *vocabulary.Service
	importer    *ingest.Service
	metrics     *metrics.Metrics
	audit       *audit.Publisher
	logger      *slog.Logger
}

func NewService(sessions SessionStore, assignments production.AssignmentStore,
	vocabs *vocabulary.Service, importer *ingest.Service, m *metrics.Metrics,
	auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		sessions:    sessions,
		assignments: assignments,
		vocabs:      vocabs,
		importer:    importer,
		metrics:     m,
		audit:       auditor,
		logger:      logger,
	}
}

// DownloadAssignments opens a session and returns the collector's pending
// work plus the current vocabulary snapshot. The version map that was sent
// is persisted on the session.
func (s *Service) DownloadAssignments(ctx context.Context, collectorID id.CollectorID,
	deviceID, deviceDescription string) (*DownloadResponse, error) {
	now := requestcontext.Now(ctx)
	session := NewSession(collectorID, deviceID, deviceDescription, now)

	assignments, err := s.assignments.ListDownloadable(ctx, collectorID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	bundles := make([]AssignmentBundle, 0, len(assignments))
	for _, a := range assignments {
		building, err := s.assignments.GetBuilding(ctx, a.BuildingID)
		if err != nil {
			return nil, fmt.Errorf("load building for assignment %s: %w", a.ID, err)
		}
		units, err := s.assignments.ListUnitsByBuilding(ctx, a.BuildingID)
		if err != nil {
			return nil, fmt.Errorf("load units for assignment %s: %w", a.ID, err)
		}
		bundles = append(bundles, AssignmentBundle{Assignment: a, Building: building, Units: units})
	}

	snapshot, err := s.vocabs.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble vocabulary snapshot: %w", err)
	}

	session.AssignmentsDownloaded = len(bundles)
	session.VocabVersionsSent = snapshot.Versions
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("open sync session: %w", err)
	}
	s.metrics.RecordSyncOp("download", "ok")
	s.audit.Emit(ctx, "session", session.ID.String(), audit.ActionSyncStarted, map[string]any{
		"collector_id": collectorID.String(), "assignments": len(bundles),
	})

	return &DownloadResponse{
		SessionID:    session.ID,
		CollectorID:  collectorID,
		GeneratedAt:  now,
		Bundles:      bundles,
		Vocabularies: snapshot.Vocabularies,
		Versions:     snapshot.Versions,
	}, nil
}

// UploadPackage performs the checksum idempotency check before anything
// else, then hands the accepted package to the import pipeline. Session
// counters are best-effort: a missing session never fails an upload.
func (s *Service) UploadPackage(ctx context.Context, sessionID id.SessionID,
	manifest *container.Manifest, payload []byte, collectorID id.CollectorID) (*ingest.UploadOutcome, error) {
	outcome, err := s.importer.Accept(ctx, manifest, payload, collectorID)
	if err != nil {
		s.metrics.RecordSyncOp("upload", "error")
		s.bumpSessionCounters(ctx, sessionID, false)
		return nil, err
	}

	status := "accepted"
	switch {
	case outcome.Duplicate:
		status = "duplicate"
	case outcome.Quarantined:
		status = "quarantined"
	}
	s.metrics.RecordSyncOp("upload", status)
	s.bumpSessionCounters(ctx, sessionID, outcome.Accepted)
	return outcome, nil
}

func (s *Service) bumpSessionCounters(ctx context.Context, sessionID id.SessionID, accepted bool) {
	if sessionID.IsNil() {
		return
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "session counter update failed",
				"session_id", sessionID, "error", err)
		}
		return
	}
	if accepted {
		session.PackagesUploaded++
	} else {
		session.PackagesFailed++
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		s.logger.WarnContext(ctx, "session counter update failed",
			"session_id", sessionID, "error", err)
	}
}

// Acknowledge flips each assignment to Transferred. Safe to repeat: an
// already-transferred assignment is a no-op, reported in neither count.
func (s *Service) Acknowledge(ctx context.Context, sessionID id.SessionID,
	assignmentIDs []id.AssignmentID) (*AckResult, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load sync session: %w", err)
	}

	now := requestcontext.Now(ctx)
	result := &AckResult{}
	for _, assignmentID := range assignmentIDs {
		changed, err := s.assignments.MarkTransferred(ctx, assignmentID, now)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			result.FailedCount++
			result.FailedAssignmentIDs = append(result.FailedAssignmentIDs, assignmentID)
		case err != nil:
			return nil, fmt.Errorf("acknowledge assignment %s: %w", assignmentID, err)
		case changed:
			result.AcknowledgedCount++
		}
	}

	session.AssignmentsAcked += result.AcknowledgedCount
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update sync session: %w", err)
	}
	s.metrics.RecordSyncOp("acknowledge", "ok")
	s.audit.Emit(ctx, "session", session.ID.String(), audit.ActionSyncAcknowledged, map[string]any{
		"acknowledged": result.AcknowledgedCount, "failed": result.FailedCount,
	})

	result.Message = fmt.Sprintf("%d acknowledged, %d failed", result.AcknowledgedCount, result.FailedCount)
	return result, nil
}

// CloseSession ends a device's sync cycle. An empty errorMessage completes
// the session; otherwise it closes as failed with the device's reason.
func (s *Service) CloseSession(ctx context.Context, sessionID id.SessionID,
	errorMessage string) (*Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load sync session: %w", err)
	}

	now := requestcontext.Now(ctx)
	if errorMessage == "" {
		err = session.Complete(now)
	} else {
		err = session.Fail(errorMessage, now)
	}
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("close sync session: %w", err)
	}
	s.metrics.RecordSyncOp("close", string(session.Status))
	s.audit.Emit(ctx, "session", session.ID.String(), audit.ActionSyncClosed, map[string]any{
		"status":   string(session.Status),
		"uploaded": session.PackagesUploaded,
		"acked":    session.AssignmentsAcked,
	})
	return session, nil
}
