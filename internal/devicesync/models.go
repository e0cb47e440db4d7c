// Package devicesync is the protocol surface field-collector devices talk
// to: assignment download, package upload and acknowledgment.
package devicesync

import (
	"fmt"
	"time"

	"terrasync/internal/production"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// SessionStatus of one device sync cycle.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session tracks one device's sync cycle and its counters.
type Session struct {
	ID                id.SessionID
	CollectorID       id.CollectorID
	DeviceID          string
	DeviceDescription string
	Status            SessionStatus
	StartedAt         time.Time
	CompletedAt       *time.Time

	PackagesUploaded      int
	PackagesFailed        int
	AssignmentsDownloaded int
	AssignmentsAcked      int

	// VocabVersionsSent is the compact version map actually sent to the
	// device, kept for later compatibility comparison.
	VocabVersionsSent map[string]string

	ErrorMessage string
}

func NewSession(collectorID id.CollectorID, deviceID, description string, startedAt time.Time) *Session {
	return &Session{
		ID:                id.NewSessionID(),
		CollectorID:       collectorID,
		DeviceID:          deviceID,
		DeviceDescription: description,
		Status:            SessionActive,
		StartedAt:         startedAt,
	}
}

// Complete closes an active session.
func (s *Session) Complete(now time.Time) error {
	if s.Status != SessionActive {
		return fmt.Errorf("session %s already %s: %w", s.ID, s.Status, sentinel.ErrInvalidState)
	}
	s.Status = SessionCompleted
	s.CompletedAt = &now
	return nil
}

// Fail closes an active session with the device-reported error.
func (s *Session) Fail(reason string, now time.Time) error {
	if s.Status != SessionActive {
		return fmt.Errorf("session %s already %s: %w", s.ID, s.Status, sentinel.ErrInvalidState)
	}
	s.Status = SessionFailed
	s.ErrorMessage = reason
	s.CompletedAt = &now
	return nil
}

// AssignmentBundle is one downloadable work item: the assignment plus the
// building and its units, all under production identifiers since this data
// flows to the device.
type AssignmentBundle struct {
	Assignment *production.Assignment `json:"assignment"`
	Building   *production.Building   `json:"building"`
	Units      []production.Unit      `json:"units"`
}

// DownloadResponse is the full payload of a download-assignments call.
type DownloadResponse struct {
	SessionID    id.SessionID            `json:"session_id"`
	CollectorID  id.CollectorID          `json:"collector_id"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Bundles      []AssignmentBundle      `json:"bundles"`
	Vocabularies []vocabulary.Vocabulary `json:"vocabularies"`
	Versions     map[string]string       `json:"versions"`
}

// AckResult reports an acknowledge call. Repeat acknowledgments of an
// already-transferred assignment count in neither number.
type AckResult struct {
	AcknowledgedCount   int               `json:"acknowledged_count"`
	FailedCount         int               `json:"failed_count"`
	FailedAssignmentIDs []id.AssignmentID `json:"failed_assignment_ids"`
	Message             string            `json:"message"`
}
