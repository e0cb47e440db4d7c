package devicesync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// PostgresSessionStore persists sync sessions.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `id, collector_id, device_id, device_description, status,
	started_at, completed_at, packages_uploaded, packages_failed,
	assignments_downloaded, assignments_acked, vocab_versions_sent, error_message`

func (st *PostgresSessionStore) Create(ctx context.Context, session *Session) error {
	versions, err := json.Marshal(session.VocabVersionsSent)
	if err != nil {
		return fmt.Errorf("marshal versions sent: %w", err)
	}
	if _, err := st.db.ExecContext(ctx, `
		INSERT INTO sync_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, uuid.UUID(session.ID), uuid.UUID(session.CollectorID), session.DeviceID,
		session.DeviceDescription, string(session.Status), session.StartedAt,
		session.CompletedAt, session.PackagesUploaded, session.PackagesFailed,
		session.AssignmentsDownloaded, session.AssignmentsAcked,
		string(versions), session.ErrorMessage); err != nil {
		return fmt.Errorf("create sync session: %w", err)
	}
	return nil
}

func (st *PostgresSessionStore) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	var (
		s           Session
		sid         uuid.UUID
		collectorID uuid.UUID
		status      string
		completedAt sql.NullTime
		versions    []byte
	)
	err := st.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sync_sessions WHERE id = $1
	`, uuid.UUID(sessionID)).Scan(&sid, &collectorID, &s.DeviceID,
		&s.DeviceDescription, &status, &s.StartedAt, &completedAt,
		&s.PackagesUploaded, &s.PackagesFailed, &s.AssignmentsDownloaded,
		&s.AssignmentsAcked, &versions, &s.ErrorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get sync session: %w", err)
	}
	s.ID = id.SessionID(sid)
	s.CollectorID = id.CollectorID(collectorID)
	s.Status = SessionStatus(status)
	if completedAt.Valid {
		at := completedAt.Time
		s.CompletedAt = &at
	}
	if err := json.Unmarshal(versions, &s.VocabVersionsSent); err != nil {
		return nil, fmt.Errorf("unmarshal versions sent: %w", err)
	}
	return &s, nil
}

func (st *PostgresSessionStore) Update(ctx context.Context, session *Session) error {
	versions, err := json.Marshal(session.VocabVersionsSent)
	if err != nil {
		return fmt.Errorf("marshal versions sent: %w", err)
	}
	res, err := st.db.ExecContext(ctx, `
		UPDATE sync_sessions SET
			status = $2, completed_at = $3, packages_uploaded = $4,
			packages_failed = $5, assignments_downloaded = $6,
			assignments_acked = $7, vocab_versions_sent = $8, error_message = $9
		WHERE id = $1
	`, uuid.UUID(session.ID), string(session.Status), session.CompletedAt,
		session.PackagesUploaded, session.PackagesFailed,
		session.AssignmentsDownloaded, session.AssignmentsAcked,
		string(versions), session.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update sync session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync session: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
