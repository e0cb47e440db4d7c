package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"terrasync/internal/audit"
	"terrasync/internal/commit"
	"terrasync/internal/container"
	"terrasync/internal/dedupe"
	"terrasync/internal/platform/metrics"
	"terrasync/internal/sequence"
	"terrasync/internal/staging"
	"terrasync/internal/validation"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	"terrasync/pkg/requestcontext"
)

// Committer is the commit engine as the service sees it.
type Committer interface {
	Commit(ctx context.Context, pkgID id.PackageID) (*commit.Result, error)
}

// UploadOutcome is the sync protocol's answer to an upload attempt.
type UploadOutcome struct {
	Accepted    bool
	Duplicate   bool
	Quarantined bool
	PackageID   id.PackageID
	Status      Status
	Message     string
}

// Service drives a package through the import pipeline: integrity,
// vocabulary compatibility, staging, validation, duplicate detection, and
// finally commit.
type Service struct {
	packages  Store
	staging   staging.Store
	loader    *staging.Loader
	codec     *container.Codec
	verifier  *Verifier
	vocabs    *vocabulary.Service
	pipeline  *validation.Pipeline
	detector  *dedupe.Engine
	committer Committer
	seq       sequence.Sequence
	metrics   *metrics.Metrics
	audit     *audit.Publisher
	logger    *slog.Logger
}

func NewService(packages Store, stagingStore staging.Store, loader *staging.Loader,
	codec *container.Codec, verifier *Verifier, vocabs *vocabulary.Service,
	pipeline *validation.Pipeline, detector *dedupe.Engine, committer Committer,
	seq sequence.Sequence, m *metrics.Metrics, auditor *audit.Publisher,
	logger *slog.Logger) *Service {
	return &Service{
		packages:  packages,
		staging:   stagingStore,
		loader:    loader,
		codec:     codec,
		verifier:  verifier,
		vocabs:    vocabs,
		pipeline:  pipeline,
		detector:  detector,
		committer: committer,
		seq:       seq,
		metrics:   m,
		audit:     auditor,
		logger:    logger,
	}
}

func (s *Service) Get(ctx context.Context, pkgID id.PackageID) (*ImportPackage, error) {
	return s.packages.Get(ctx, pkgID)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]*ImportPackage, error) {
	return s.packages.ListRecent(ctx, limit)
}

// Accept is the upload entry point. The checksum idempotency check happens
// before anything else: a re-upload of a known container is reported as a
// duplicate and leaves no trace.
func (s *Service) Accept(ctx context.Context, manifest *container.Manifest,
	payload []byte, collectorID id.CollectorID) (*UploadOutcome, error) {
	ctx, span := otel.Tracer("terrasync/ingest").Start(ctx, "ingest.accept")
	defer span.End()

	number, err := s.seq.Next(ctx, "package")
	if err != nil {
		return nil, fmt.Errorf("assign package number: %w", err)
	}
	pkg := NewImportPackage(sequence.Format("PKG", number), manifest, collectorID, requestcontext.Now(ctx))

	pkg, created, err := s.packages.CreateIfNew(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("register upload: %w", err)
	}
	if !created {
		s.metrics.RecordIngest("duplicate")
		s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageDuplicate, map[string]any{
			"checksum": pkg.Checksum,
		})
		return &UploadOutcome{
			Duplicate: true,
			PackageID: pkg.ID,
			Status:    pkg.Status,
			Message:   fmt.Sprintf("package with checksum %s already imported as %s", pkg.Checksum, pkg.PackageNumber),
		}, nil
	}
	span.SetAttributes(attribute.String("package_number", pkg.PackageNumber))

	integrity := s.verifier.Verify(manifest, payload)
	pkg.SignaturePresent = integrity.SignaturePresent
	pkg.SignatureValid = integrity.SignatureValid
	pkg.SchemaValid = integrity.SchemaSupported
	if !integrity.OK() {
		return s.quarantine(ctx, pkg, "integrity: "+strings.Join(integrity.Issues, "; "))
	}

	compat, err := s.vocabs.Check(ctx, manifest.VocabularyVersions)
	if err != nil {
		return nil, fmt.Errorf("vocabulary compatibility check: %w", err)
	}
	pkg.VocabCompatible = compat.Compatible
	pkg.VocabIssues = compat.Issues
	if !compat.Compatible {
		return s.quarantine(ctx, pkg, compatMessage(compat))
	}

	decoded, err := s.codec.Decode(manifest.SchemaVersion, payload)
	if err != nil {
		return s.quarantine(ctx, pkg, fmt.Sprintf("malformed container: %v", err))
	}

	if err := s.runPipeline(ctx, pkg, decoded); err != nil {
		return nil, err
	}
	s.metrics.RecordIngest("accepted")
	return &UploadOutcome{
		Accepted:  true,
		PackageID: pkg.ID,
		Status:    pkg.Status,
		Message:   fmt.Sprintf("package %s accepted", pkg.PackageNumber),
	}, nil
}

// runPipeline stages, validates and dedupe-checks an accepted package.
func (s *Service) runPipeline(ctx context.Context, pkg *ImportPackage, payload *container.Payload) error {
	if err := pkg.TransitionTo(StatusValidating); err != nil {
		return err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return fmt.Errorf("advance package: %w", err)
	}
	s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageAccepted, map[string]any{
		"records": payload.TotalRecords(),
	})

	counts, err := s.loader.Load(ctx, pkg.ID, payload)
	if err != nil {
		// A partial load is discardable; nothing downstream saw it.
		if delErr := s.staging.DeleteByPackage(ctx, pkg.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "discard partial staging partition failed",
				"package_id", pkg.ID, "error", delErr)
		}
		if cancelErr := pkg.Cancel(fmt.Sprintf("staging load failed: %v", err)); cancelErr == nil {
			_ = s.packages.Update(ctx, pkg)
		}
		return fmt.Errorf("stage package: %w", err)
	}
	s.warnOnCountDrift(ctx, pkg, counts)
	s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageStaged, map[string]any{
		"counts": kindCounts(counts),
	})

	results, err := s.pipeline.Run(ctx, pkg.ID)
	if err != nil {
		return fmt.Errorf("run validation pipeline: %w", err)
	}
	if err := pkg.ApplyLevelResults(results); err != nil {
		return err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return fmt.Errorf("record validation outcome: %w", err)
	}
	s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageValidated, map[string]any{
		"errors": pkg.ErrorCount, "warnings": pkg.WarningCount,
	})
	if pkg.Status == StatusValidationFailed {
		return nil
	}

	report, err := s.detector.Detect(ctx, pkg.ID)
	if err != nil {
		return fmt.Errorf("duplicate detection: %w", err)
	}
	if err := pkg.RecordConflicts(report.RequiringReview()); err != nil {
		return err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return fmt.Errorf("record detection outcome: %w", err)
	}
	if report.Total() > 0 {
		s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionConflictsDetected, map[string]any{
			"persons": report.PersonDuplicates, "properties": report.PropertyDuplicates,
			"auto_resolved": report.AutoResolved,
		})
	}
	return nil
}

// warnOnCountDrift compares manifest-declared counts with what actually
// staged. Drift is logged, not fatal: the manifest already passed its
// checksum, so a mismatch means a buggy device export.
func (s *Service) warnOnCountDrift(ctx context.Context, pkg *ImportPackage, staged map[id.EntityKind]int) {
	for kind, declared := range pkg.RecordCounts {
		if actual := staged[id.EntityKind(kind)]; actual != declared {
			s.logger.WarnContext(ctx, "manifest record count drift",
				"package_number", pkg.PackageNumber, "kind", kind,
				"declared", declared, "staged", actual)
		}
	}
}

func (s *Service) quarantine(ctx context.Context, pkg *ImportPackage, reason string) (*UploadOutcome, error) {
	if err := pkg.Quarantine(reason); err != nil {
		return nil, err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("quarantine package: %w", err)
	}
	s.metrics.RecordIngest("quarantined")
	s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageQuarantined, map[string]any{
		"reason": reason,
	})
	s.logger.WarnContext(ctx, "package quarantined",
		"package_number", pkg.PackageNumber, "reason", reason)
	return &UploadOutcome{
		Quarantined: true,
		PackageID:   pkg.ID,
		Status:      pkg.Status,
		Message:     reason,
	}, nil
}

// ApproveRecords marks every valid or warning record in the package
// eligible for commit. Records with blocking errors are never approvable.
func (s *Service) ApproveRecords(ctx context.Context, pkgID id.PackageID) (int, error) {
	records, err := s.staging.ListByPackage(ctx, pkgID)
	if err != nil {
		return 0, fmt.Errorf("load staging partition: %w", err)
	}
	approved := 0
	for _, r := range records {
		if r.Approved || r.Status == staging.StatusInvalid || r.Status == staging.StatusPending {
			continue
		}
		if err := r.Approve(); err != nil {
			return approved, err
		}
		if err := s.staging.Update(ctx, r); err != nil {
			return approved, fmt.Errorf("approve record %s: %w", r.ID, err)
		}
		approved++
	}
	return approved, nil
}

// MarkConflictsResolved advances a package out of conflict review. Called by
// the conflict service when the package's last conflict closes.
func (s *Service) MarkConflictsResolved(ctx context.Context, pkgID id.PackageID) error {
	pkg, err := s.packages.Get(ctx, pkgID)
	if err != nil {
		return fmt.Errorf("load package: %w", err)
	}
	if err := pkg.MarkConflictsResolved(); err != nil {
		return err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return fmt.Errorf("advance package: %w", err)
	}
	return nil
}

// Commit runs one promotion attempt for a ready package.
func (s *Service) Commit(ctx context.Context, pkgID id.PackageID) (*ImportPackage, error) {
	pkg, err := s.packages.Get(ctx, pkgID)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if err := pkg.BeginCommit(); err != nil {
		return nil, err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("claim package for commit: %w", err)
	}

	outcome, err := s.committer.Commit(ctx, pkgID)
	if err != nil {
		// Infrastructure fault: nothing was promoted. Staging data is kept
		// for diagnosis and retry.
		if trErr := pkg.TransitionTo(StatusFailed); trErr == nil {
			pkg.StatusReason = fmt.Sprintf("commit aborted: %v", err)
			_ = s.packages.Update(ctx, pkg)
		}
		return nil, fmt.Errorf("commit package: %w", err)
	}
	if err := pkg.FinishCommit(outcome.Succeeded, outcome.Failed, outcome.Skipped); err != nil {
		return nil, err
	}
	if outcome.FailureReason != "" {
		pkg.StatusReason = outcome.FailureReason
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("record commit outcome: %w", err)
	}
	s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageCommitted, map[string]any{
		"succeeded": outcome.Succeeded, "failed": outcome.Failed, "skipped": outcome.Skipped,
	})
	return pkg, nil
}

// Cancel aborts a package and discards its staging partition.
func (s *Service) Cancel(ctx context.Context, pkgID id.PackageID, reason string) (*ImportPackage, error) {
	pkg, err := s.packages.Get(ctx, pkgID)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if err := pkg.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("cancel package: %w", err)
	}
	if err := s.staging.DeleteByPackage(ctx, pkgID); err != nil {
		return nil, fmt.Errorf("discard staging partition: %w", err)
	}
	s.audit.Emit(ctx, "package", pkg.PackageNumber, audit.ActionPackageCancelled, map[string]any{
		"reason": reason,
	})
	return pkg, nil
}

func compatMessage(result vocabulary.CompatResult) string {
	msgs := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Severity == vocabulary.SeverityBlocking {
			msgs = append(msgs, issue.Message)
		}
	}
	return "vocabulary compatibility: " + strings.Join(msgs, "; ")
}

func kindCounts(counts map[id.EntityKind]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k.String()] = v
	}
	return out
}
