// Package ingest owns the import package aggregate: the state machine that
// drives a device upload from intake through validation, conflict review and
// commit.
package ingest

import (
	"fmt"
	"time"

	"terrasync/internal/container"
	"terrasync/internal/validation"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// Status of an import package.
type Status string

const (
	StatusPending            Status = "pending"
	StatusValidating         Status = "validating"
	StatusValidationFailed   Status = "validation_failed"
	StatusStaging            Status = "staging"
	StatusQuarantined        Status = "quarantined"
	StatusReviewingConflicts Status = "reviewing_conflicts"
	StatusReadyToCommit      Status = "ready_to_commit"
	StatusCommitting         Status = "committing"
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusFailed             Status = "failed"
	StatusCancelled          Status = "cancelled"
)

// transitions is the complete legal move set. Cancelled is additionally
// reachable from every non-terminal state; see TransitionTo.
var transitions = map[Status][]Status{
	StatusPending:            {StatusValidating, StatusQuarantined},
	StatusValidating:         {StatusValidationFailed, StatusStaging, StatusQuarantined},
	StatusValidationFailed:   {},
	StatusStaging:            {StatusReviewingConflicts, StatusReadyToCommit},
	StatusQuarantined:        {},
	StatusReviewingConflicts: {StatusReadyToCommit},
	StatusReadyToCommit:      {StatusCommitting},
	StatusCommitting:         {StatusCompleted, StatusPartiallyCompleted, StatusFailed},
}

// Terminal reports whether the status admits no further transitions at all.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the move is legal.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusCancelled {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ImportPackage is the aggregate tracking one uploaded container end to end.
type ImportPackage struct {
	ID            id.PackageID
	PackageNumber string
	FileName      string
	FileSize      int64
	CreatedAt     time.Time
	ExportedAt    time.Time
	CollectorID   id.CollectorID
	DeviceID      string

	Checksum         string
	SignaturePresent bool
	SignatureValid   bool
	SchemaVersion    string
	SchemaValid      bool

	RecordCounts    map[string]int
	VocabVersions   map[string]string
	VocabCompatible bool
	VocabIssues     []vocabulary.CompatIssue

	ErrorCount   int
	WarningCount int
	LevelResults []validation.LevelResult

	ConflictCount     int
	ConflictsResolved bool

	CommitSucceeded int
	CommitFailed    int
	CommitSkipped   int

	Status       Status
	StatusReason string
}

// NewImportPackage registers an accepted upload in Pending state.
func NewImportPackage(packageNumber string, manifest *container.Manifest, collectorID id.CollectorID, now time.Time) *ImportPackage {
	return &ImportPackage{
		ID:            id.NewPackageID(),
		PackageNumber: packageNumber,
		FileName:      manifest.FileName,
		FileSize:      manifest.FileSize,
		CreatedAt:     now,
		ExportedAt:    manifest.ExportedAt,
		CollectorID:   collectorID,
		DeviceID:      manifest.DeviceID,
		Checksum:      manifest.Checksum,
		SchemaVersion: manifest.SchemaVersion,
		RecordCounts:  manifest.RecordCounts,
		VocabVersions: manifest.VocabularyVersions,
		VocabCompatible: true,
		Status:          StatusPending,
	}
}

// TransitionTo moves the package to next, or fails with ErrInvalidState.
func (p *ImportPackage) TransitionTo(next Status) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("package %s cannot move %s -> %s: %w",
			p.PackageNumber, p.Status, next, sentinel.ErrInvalidState)
	}
	p.Status = next
	return nil
}

// Quarantine parks the package after an integrity or compatibility failure.
// Quarantined packages are never auto-retried; recovery is a re-upload.
func (p *ImportPackage) Quarantine(reason string) error {
	if err := p.TransitionTo(StatusQuarantined); err != nil {
		return err
	}
	p.StatusReason = reason
	return nil
}

// Cancel aborts the package from any non-terminal state.
func (p *ImportPackage) Cancel(reason string) error {
	if err := p.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	p.StatusReason = reason
	return nil
}

// ApplyLevelResults aggregates the validation run and settles the package in
// ValidationFailed or Staging.
func (p *ImportPackage) ApplyLevelResults(results []validation.LevelResult) error {
	p.LevelResults = results
	p.ErrorCount, p.WarningCount = 0, 0
	for _, r := range results {
		p.ErrorCount += r.ErrorCount
		p.WarningCount += r.WarningCount
	}
	if p.ErrorCount > 0 {
		if err := p.TransitionTo(StatusValidationFailed); err != nil {
			return err
		}
		p.StatusReason = fmt.Sprintf("%d blocking validation errors", p.ErrorCount)
		return nil
	}
	return p.TransitionTo(StatusStaging)
}

// RecordConflicts stores the duplicate detection outcome and routes the
// package to conflict review, or straight to ready when the queue is empty.
func (p *ImportPackage) RecordConflicts(count int) error {
	p.ConflictCount = count
	if count == 0 {
		p.ConflictsResolved = true
		return p.TransitionTo(StatusReadyToCommit)
	}
	p.ConflictsResolved = false
	return p.TransitionTo(StatusReviewingConflicts)
}

// MarkConflictsResolved advances a reviewing package once its last conflict
// closed.
func (p *ImportPackage) MarkConflictsResolved() error {
	if err := p.TransitionTo(StatusReadyToCommit); err != nil {
		return err
	}
	p.ConflictsResolved = true
	return nil
}

// BeginCommit claims the package for a commit attempt.
func (p *ImportPackage) BeginCommit() error {
	return p.TransitionTo(StatusCommitting)
}

// FinishCommit records the attempt's counts and settles the terminal status:
// Completed when nothing failed, Failed when nothing succeeded, otherwise
// PartiallyCompleted.
func (p *ImportPackage) FinishCommit(succeeded, failed, skipped int) error {
	p.CommitSucceeded += succeeded
	p.CommitFailed = failed
	p.CommitSkipped = skipped

	var next Status
	switch {
	case failed == 0:
		next = StatusCompleted
	case p.CommitSucceeded == 0:
		next = StatusFailed
	default:
		next = StatusPartiallyCompleted
	}
	if err := p.TransitionTo(next); err != nil {
		return err
	}
	if next != StatusCompleted {
		p.StatusReason = fmt.Sprintf("commit: %d succeeded, %d failed, %d skipped",
			succeeded, failed, skipped)
	}
	return nil
}
