// Package audit captures pipeline events through a transactional outbox and
// relays them to Kafka. The outbox write shares the caller's transaction
// when one is in the context, so an event is recorded exactly when its
// operation commits.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names follow aggregate.verb.
const (
	ActionPackageAccepted    = "package.accepted"
	ActionPackageDuplicate   = "package.duplicate"
	ActionPackageQuarantined = "package.quarantined"
	ActionPackageValidated   = "package.validated"
	ActionPackageStaged      = "package.staged"
	ActionConflictsDetected  = "package.conflicts_detected"
	ActionPackageCommitted   = "package.committed"
	ActionPackageCancelled   = "package.cancelled"
	ActionConflictResolved   = "conflict.resolved"
	ActionConflictEscalated  = "conflict.escalated"
	ActionSyncAcknowledged   = "sync.acknowledged"
	ActionSyncClosed         = "sync.closed"
	ActionSyncStarted        = "sync.started"
)

// Event is one pipeline occurrence worth an audit trail entry.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Action        string         `json:"action"`
	Timestamp     time.Time      `json:"timestamp"`
	Details       map[string]any `json:"details,omitempty"`
}
