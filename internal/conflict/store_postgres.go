package conflict

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// PostgresStore persists conflicts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const conflictColumns = `id, conflict_number, package_id, conflict_type, entity_kind,
	first_entity, second_entity, first_label, second_label, score, confidence,
	description, criteria, comparison, status, action, reason, resolved_by,
	resolved_at, auto_resolved, rule_name, priority, target_hours, detected_at,
	escalated, escalated_reason, review_attempts, review_history,
	merge_surviving, merge_discarded, merge_provenance`

// encodeRef folds source and id into one column; labels live separately.
func encodeRef(r EntityRef) string {
	return string(r.Source) + ":" + r.ID
}

func decodeRef(encoded, label string) EntityRef {
	source, entityID, ok := strings.Cut(encoded, ":")
	if !ok {
		return EntityRef{ID: encoded, Label: label}
	}
	return EntityRef{Source: EntitySource(source), ID: entityID, Label: label}
}

func (s *PostgresStore) Create(ctx context.Context, c *Conflict) error {
	cols, err := marshalConflict(c)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conflicts (`+conflictColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		        $29, $30, $31)
	`, cols...); err != nil {
		return fmt.Errorf("create conflict: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, conflictID id.ConflictID) (*Conflict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conflictColumns+` FROM conflicts WHERE id = $1
	`, uuid.UUID(conflictID))
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *Conflict) error {
	cols, err := marshalConflict(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE conflicts SET
			conflict_number = $2, package_id = $3, conflict_type = $4,
			entity_kind = $5, first_entity = $6, second_entity = $7,
			first_label = $8, second_label = $9, score = $10, confidence = $11,
			description = $12, criteria = $13, comparison = $14, status = $15,
			action = $16, reason = $17, resolved_by = $18, resolved_at = $19,
			auto_resolved = $20, rule_name = $21, priority = $22,
			target_hours = $23, detected_at = $24, escalated = $25,
			escalated_reason = $26, review_attempts = $27, review_history = $28,
			merge_surviving = $29, merge_discarded = $30, merge_provenance = $31
		WHERE id = $1
	`, cols...)
	if err != nil {
		return fmt.Errorf("update conflict: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conflict: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByPackage(ctx context.Context, pkgID id.PackageID) ([]*Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conflictColumns+` FROM conflicts
		WHERE package_id = $1
		ORDER BY conflict_number
	`, uuid.UUID(pkgID))
	if err != nil {
		return nil, fmt.Errorf("list package conflicts: %w", err)
	}
	defer rows.Close()
	return collectConflicts(rows)
}

func (s *PostgresStore) ListOpen(ctx context.Context) ([]*Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conflictColumns+` FROM conflicts
		WHERE status = $1
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
		         detected_at
	`, string(StatusPendingReview))
	if err != nil {
		return nil, fmt.Errorf("list open conflicts: %w", err)
	}
	defer rows.Close()
	return collectConflicts(rows)
}

func (s *PostgresStore) CountOpenByPackage(ctx context.Context, pkgID id.PackageID) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conflicts WHERE package_id = $1 AND status = $2
	`, uuid.UUID(pkgID), string(StatusPendingReview)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open conflicts: %w", err)
	}
	return count, nil
}

func collectConflicts(rows *sql.Rows) ([]*Conflict, error) {
	var out []*Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return out, nil
}

func marshalConflict(c *Conflict) ([]any, error) {
	criteria, err := json.Marshal(c.Criteria)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}
	comparison, err := json.Marshal(c.Comparison)
	if err != nil {
		return nil, fmt.Errorf("marshal comparison: %w", err)
	}
	history, err := json.Marshal(c.ReviewHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal review history: %w", err)
	}

	var action any
	if c.Action != "" {
		action = string(c.Action)
	}
	var resolvedAt any
	if c.ResolvedAt != nil {
		resolvedAt = *c.ResolvedAt
	}
	var mergeSurviving, mergeDiscarded, mergeProvenance any
	if c.Merge != nil {
		mergeSurviving = c.Merge.SurvivingID
		mergeDiscarded = c.Merge.DiscardedID
		provenance, err := json.Marshal(c.Merge.Provenance)
		if err != nil {
			return nil, fmt.Errorf("marshal merge provenance: %w", err)
		}
		mergeProvenance = string(provenance)
	}

	return []any{
		uuid.UUID(c.ID), c.Number, uuid.UUID(c.PackageID), string(c.Type),
		c.EntityKind.String(), encodeRef(c.First), encodeRef(c.Second),
		c.First.Label, c.Second.Label, c.Score, string(c.Confidence),
		c.Description, string(criteria), string(comparison), string(c.Status),
		action, c.Reason, c.ResolvedBy, resolvedAt, c.AutoResolved, c.RuleName,
		string(c.Priority), c.TargetHours, c.DetectedAt, c.Escalated,
		c.EscalatedReason, c.ReviewAttempts, string(history),
		mergeSurviving, mergeDiscarded, mergeProvenance,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConflict(row rowScanner) (*Conflict, error) {
	var (
		c               Conflict
		conflictID      uuid.UUID
		packageID       uuid.UUID
		conflictType    string
		entityKind      string
		firstRef        string
		secondRef       string
		firstLabel      string
		secondLabel     string
		confidence      string
		criteria        []byte
		comparison      []byte
		status          string
		action          sql.NullString
		resolvedAt      sql.NullTime
		priority        string
		history         []byte
		mergeSurviving  sql.NullString
		mergeDiscarded  sql.NullString
		mergeProvenance []byte
	)
	if err := row.Scan(&conflictID, &c.Number, &packageID, &conflictType,
		&entityKind, &firstRef, &secondRef, &firstLabel, &secondLabel,
		&c.Score, &confidence, &c.Description, &criteria, &comparison,
		&status, &action, &c.Reason, &c.ResolvedBy, &resolvedAt,
		&c.AutoResolved, &c.RuleName, &priority, &c.TargetHours, &c.DetectedAt,
		&c.Escalated, &c.EscalatedReason, &c.ReviewAttempts, &history,
		&mergeSurviving, &mergeDiscarded, &mergeProvenance,
	); err != nil {
		return nil, err
	}
	c.ID = id.ConflictID(conflictID)
	c.PackageID = id.PackageID(packageID)
	c.Type = Type(conflictType)
	c.EntityKind = id.EntityKind(entityKind)
	c.First = decodeRef(firstRef, firstLabel)
	c.Second = decodeRef(secondRef, secondLabel)
	c.Confidence = Confidence(confidence)
	c.Status = Status(status)
	c.Action = Action(action.String)
	c.Priority = Priority(priority)
	if resolvedAt.Valid {
		at := resolvedAt.Time
		c.ResolvedAt = &at
	}
	if err := json.Unmarshal(criteria, &c.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(comparison, &c.Comparison); err != nil {
		return nil, fmt.Errorf("unmarshal comparison: %w", err)
	}
	if err := json.Unmarshal(history, &c.ReviewHistory); err != nil {
		return nil, fmt.Errorf("unmarshal review history: %w", err)
	}
	if mergeSurviving.Valid || mergeDiscarded.Valid || len(mergeProvenance) > 0 {
		merge := &MergeDetails{
			SurvivingID: mergeSurviving.String,
			DiscardedID: mergeDiscarded.String,
		}
		if len(mergeProvenance) > 0 {
			if err := json.Unmarshal(mergeProvenance, &merge.Provenance); err != nil {
				return nil, fmt.Errorf("unmarshal merge provenance: %w", err)
			}
		}
		c.Merge = merge
	}
	return &c, nil
}
