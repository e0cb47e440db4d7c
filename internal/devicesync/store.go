package devicesync

import (
	"context"

	id "terrasync/pkg/domain"
)

// SessionStore persists sync sessions.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*Session, error)
	Update(ctx context.Context, session *Session) error
}
