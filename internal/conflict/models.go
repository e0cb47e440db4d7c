// Package conflict tracks duplicate-detection findings through human review:
// assignment, SLA, escalation and resolution.
package conflict

import (
	"fmt"
	"time"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// Type of duplication detected.
type Type string

const (
	TypePersonDuplicate   Type = "person_duplicate"
	TypePropertyDuplicate Type = "property_duplicate"
)

// Confidence of the match, derived from score and exact-field agreement.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Priority drives the review SLA.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Status of the review workflow.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusResolved      Status = "resolved"
	StatusIgnored       Status = "ignored"
)

// Action taken by the reviewer.
type Action string

const (
	ActionMerge   Action = "merge"
	ActionKeepOne Action = "keep_one"
	ActionIgnore  Action = "ignore"
)

// EntitySource says which side of the comparison an entity came from.
type EntitySource string

const (
	SourceStaging    EntitySource = "staging"
	SourceProduction EntitySource = "production"
)

// EntityRef points at one side of a duplicate pair.
type EntityRef struct {
	Source EntitySource `json:"source"`
	ID     string       `json:"id"`
	Label  string       `json:"label"`
}

// MatchCriterion is one field's contribution to the similarity score.
type MatchCriterion struct {
	Field      string  `json:"field"`
	First      string  `json:"first"`
	Second     string  `json:"second"`
	Similarity float64 `json:"similarity"`
	Exact      bool    `json:"exact"`
	Weight     float64 `json:"weight"`
}

// FieldPair is a side-by-side value comparison shown to reviewers.
type FieldPair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// ReviewEntry is one look-then-decide cycle in the review history.
type ReviewEntry struct {
	At       time.Time `json:"at"`
	Reviewer string    `json:"reviewer"`
	Note     string    `json:"note"`
}

// MergeDetails records which entity survived a merge and where each field's
// final value came from, for audit.
type MergeDetails struct {
	SurvivingID string            `json:"surviving_id"`
	DiscardedID string            `json:"discarded_id"`
	Provenance  map[string]string `json:"provenance"`
}

// Conflict is one detected duplicate pair awaiting (or past) resolution.
type Conflict struct {
	ID        id.ConflictID
	Number    string
	PackageID id.PackageID

	Type       Type
	EntityKind id.EntityKind
	First      EntityRef
	Second     EntityRef

	Score       float64
	Confidence  Confidence
	Description string
	Criteria    []MatchCriterion
	Comparison  map[string]FieldPair

	Status       Status
	Action       Action
	Reason       string
	ResolvedBy   string
	ResolvedAt   *time.Time
	AutoResolved bool
	RuleName     string

	Priority    Priority
	TargetHours int
	DetectedAt  time.Time

	Escalated       bool
	EscalatedReason string

	ReviewAttempts int
	ReviewHistory  []ReviewEntry

	Merge *MergeDetails
}

// PriorityFor maps confidence and score to an initial priority.
func PriorityFor(confidence Confidence, score float64) Priority {
	switch {
	case confidence == ConfidenceHigh && score >= 90:
		return PriorityHigh
	case confidence == ConfidenceMedium || score >= 70:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Closed reports whether the workflow has finished.
func (c *Conflict) Closed() bool {
	return c.Status == StatusResolved || c.Status == StatusIgnored
}

// Overdue is evaluated lazily against the SLA; no background timers.
func (c *Conflict) Overdue(now time.Time) bool {
	if c.Closed() {
		return false
	}
	return now.After(c.DetectedAt.Add(time.Duration(c.TargetHours) * time.Hour))
}

// Resolve closes the conflict with an explicit action and reason. A merge
// must name the surviving and discarded entities and carry a field
// provenance map.
func (c *Conflict) Resolve(action Action, reason, resolvedBy string, merge *MergeDetails, now time.Time) error {
	if c.Closed() {
		return fmt.Errorf("conflict %s already %s: %w", c.Number, c.Status, sentinel.ErrInvalidState)
	}
	if reason == "" {
		return fmt.Errorf("conflict %s: resolution requires a reason: %w", c.Number, sentinel.ErrInvalidState)
	}
	switch action {
	case ActionMerge:
		if merge == nil || merge.SurvivingID == "" || merge.DiscardedID == "" || len(merge.Provenance) == 0 {
			return fmt.Errorf("conflict %s: merge requires surviving, discarded and provenance: %w",
				c.Number, sentinel.ErrInvalidState)
		}
		c.Merge = merge
	case ActionKeepOne:
		// Nothing extra to record.
	case ActionIgnore:
		c.Status = StatusIgnored
		c.Action = action
		c.Reason = reason
		c.ResolvedBy = resolvedBy
		c.ResolvedAt = &now
		return nil
	default:
		return fmt.Errorf("conflict %s: unknown action %q: %w", c.Number, action, sentinel.ErrInvalidState)
	}
	c.Status = StatusResolved
	c.Action = action
	c.Reason = reason
	c.ResolvedBy = resolvedBy
	c.ResolvedAt = &now
	return nil
}

// AutoResolve closes the conflict by rule, without a reviewer. The rule
// name is recorded so an auto-closed pair is auditable next to a human
// decision.
func (c *Conflict) AutoResolve(rule, reason string, now time.Time) error {
	if c.Closed() {
		return fmt.Errorf("conflict %s already %s: %w", c.Number, c.Status, sentinel.ErrInvalidState)
	}
	if rule == "" {
		return fmt.Errorf("conflict %s: auto-resolution requires a rule name: %w", c.Number, sentinel.ErrInvalidState)
	}
	c.Status = StatusIgnored
	c.Action = ActionIgnore
	c.Reason = reason
	c.ResolvedBy = "system"
	c.ResolvedAt = &now
	c.AutoResolved = true
	c.RuleName = rule
	return nil
}

// Escalate flags the conflict and forces its priority to High. Allowed any
// time before resolution.
func (c *Conflict) Escalate(reason string) error {
	if c.Closed() {
		return fmt.Errorf("conflict %s already closed: %w", c.Number, sentinel.ErrInvalidState)
	}
	c.Escalated = true
	c.EscalatedReason = reason
	c.Priority = PriorityHigh
	return nil
}

// RecordReviewAttempt logs one reviewer pass without changing status.
func (c *Conflict) RecordReviewAttempt(reviewer, note string, now time.Time) error {
	if c.Closed() {
		return fmt.Errorf("conflict %s already closed: %w", c.Number, sentinel.ErrInvalidState)
	}
	c.ReviewAttempts++
	c.ReviewHistory = append(c.ReviewHistory, ReviewEntry{At: now, Reviewer: reviewer, Note: note})
	return nil
}
