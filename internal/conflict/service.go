package conflict

import (
	"context"
	"fmt"
	"log/slog"

	"terrasync/internal/audit"
	"terrasync/internal/platform/config"
	"terrasync/internal/platform/metrics"
	"terrasync/internal/sequence"
	id "terrasync/pkg/domain"
	"terrasync/pkg/requestcontext"
)

// Detection is what the duplicate engine reports for one suspicious pair.
type Detection struct {
	PackageID   id.PackageID
	Type        Type
	EntityKind  id.EntityKind
	First       EntityRef
	Second      EntityRef
	Score       float64
	Confidence  Confidence
	Description string
	Criteria    []MatchCriterion
	Comparison  map[string]FieldPair
}

// PackageAdvancer moves a package out of conflict review once its queue
// drains. Implemented by the ingest service; injected late to keep the
// dependency one-way at compile time.
type PackageAdvancer interface {
	MarkConflictsResolved(ctx context.Context, pkgID id.PackageID) error
}

// Service runs the review workflow around the Conflict aggregate.
type Service struct {
	store    Store
	seq      sequence.Sequence
	rules    config.ConflictRules
	metrics  *metrics.Metrics
	audit    *audit.Publisher
	packages PackageAdvancer
	logger   *slog.Logger
}

func NewService(store Store, seq sequence.Sequence, rules config.ConflictRules,
	m *metrics.Metrics, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		seq:     seq,
		rules:   rules,
		metrics: m,
		audit:   auditor,
		logger:  logger,
	}
}

// SetPackageAdvancer wires the ingest side after both services exist.
func (s *Service) SetPackageAdvancer(p PackageAdvancer) {
	s.packages = p
}

func (s *Service) targetHours(p Priority) int {
	switch p {
	case PriorityHigh:
		return s.rules.HighPriorityHours
	case PriorityNormal:
		return s.rules.NormalPriorityHours
	default:
		return s.rules.LowPriorityHours
	}
}

// RuleAutoIgnoreLowConfidence names the one built-in auto-resolution rule:
// low-confidence pairs under the configured cutoff are closed as ignored
// the moment they are detected.
const RuleAutoIgnoreLowConfidence = "auto_ignore_low_confidence"

// Open registers one detected pair. Pairs caught by an auto-resolution rule
// are persisted already closed; everything else enters the review queue.
func (s *Service) Open(ctx context.Context, d Detection) (*Conflict, error) {
	number, err := s.seq.Next(ctx, "conflict")
	if err != nil {
		return nil, fmt.Errorf("assign conflict number: %w", err)
	}
	priority := PriorityFor(d.Confidence, d.Score)
	c := &Conflict{
		ID:          id.NewConflictID(),
		Number:      sequence.Format("CNF", number),
		PackageID:   d.PackageID,
		Type:        d.Type,
		EntityKind:  d.EntityKind,
		First:       d.First,
		Second:      d.Second,
		Score:       d.Score,
		Confidence:  d.Confidence,
		Description: d.Description,
		Criteria:    d.Criteria,
		Comparison:  d.Comparison,
		Status:      StatusPendingReview,
		Priority:    priority,
		TargetHours: s.targetHours(priority),
		DetectedAt:  requestcontext.Now(ctx),
	}
	if s.rules.AutoIgnoreBelow > 0 && c.Confidence == ConfidenceLow && c.Score < s.rules.AutoIgnoreBelow {
		reason := fmt.Sprintf("score %.1f below the %.1f auto-ignore cutoff",
			c.Score, s.rules.AutoIgnoreBelow)
		if err := c.AutoResolve(RuleAutoIgnoreLowConfidence, reason, requestcontext.Now(ctx)); err != nil {
			return nil, err
		}
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("open conflict: %w", err)
	}
	if c.Closed() {
		if s.metrics != nil {
			s.metrics.ConflictsResolved.WithLabelValues(string(ActionIgnore)).Inc()
		}
		s.audit.Emit(ctx, "conflict", c.Number, audit.ActionConflictResolved, map[string]any{
			"rule": c.RuleName, "package_id": c.PackageID.String(),
		})
		return c, nil
	}
	if s.metrics != nil {
		s.metrics.ConflictsOpen.Inc()
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, conflictID id.ConflictID) (*Conflict, error) {
	return s.store.Get(ctx, conflictID)
}

// Queue returns pending conflicts ordered by priority then age. Overdue is
// computed lazily from the SLA fields, not stored.
func (s *Service) Queue(ctx context.Context) ([]*Conflict, error) {
	return s.store.ListOpen(ctx)
}

func (s *Service) ListByPackage(ctx context.Context, pkgID id.PackageID) ([]*Conflict, error) {
	return s.store.ListByPackage(ctx, pkgID)
}

// Resolve closes a conflict and, when it was the package's last open one,
// advances the package to ready-to-commit.
func (s *Service) Resolve(ctx context.Context, conflictID id.ConflictID,
	action Action, reason, resolvedBy string, merge *MergeDetails) (*Conflict, error) {
	c, err := s.store.Get(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}
	if err := c.Resolve(action, reason, resolvedBy, merge, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ConflictsOpen.Dec()
		s.metrics.ConflictsResolved.WithLabelValues(string(action)).Inc()
	}
	s.audit.Emit(ctx, "conflict", c.Number, audit.ActionConflictResolved, map[string]any{
		"action": string(action), "resolved_by": resolvedBy, "package_id": c.PackageID.String(),
	})

	if err := s.advanceIfDrained(ctx, c.PackageID); err != nil {
		// The conflict itself is closed; a failed advance is retried on the
		// next resolution or by an operator.
		s.logger.ErrorContext(ctx, "package advance after resolution failed",
			"package_id", c.PackageID, "error", err)
	}
	return c, nil
}

func (s *Service) advanceIfDrained(ctx context.Context, pkgID id.PackageID) error {
	open, err := s.store.CountOpenByPackage(ctx, pkgID)
	if err != nil {
		return err
	}
	if open > 0 || s.packages == nil {
		return nil
	}
	return s.packages.MarkConflictsResolved(ctx, pkgID)
}

// Escalate flags a conflict for urgent attention.
func (s *Service) Escalate(ctx context.Context, conflictID id.ConflictID, reason string) (*Conflict, error) {
	c, err := s.store.Get(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("escalate conflict: %w", err)
	}
	if err := c.Escalate(reason); err != nil {
		return nil, err
	}
	c.TargetHours = s.targetHours(c.Priority)
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("escalate conflict: %w", err)
	}
	s.audit.Emit(ctx, "conflict", c.Number, audit.ActionConflictEscalated, map[string]any{
		"reason": reason, "package_id": c.PackageID.String(),
	})
	return c, nil
}

// RecordReviewAttempt logs a look-then-decide pass.
func (s *Service) RecordReviewAttempt(ctx context.Context, conflictID id.ConflictID, reviewer, note string) (*Conflict, error) {
	c, err := s.store.Get(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("record review attempt: %w", err)
	}
	if err := c.RecordReviewAttempt(reviewer, note, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("record review attempt: %w", err)
	}
	return c, nil
}
