package devicesync

import (
	"context"
	"sync"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// InMemorySessionStore backs unit tests and dev mode.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*Session)}
}

func cloneSession(s *Session) *Session {
	c := *s
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	if s.VocabVersionsSent != nil {
		c.VocabVersionsSent = make(map[string]string, len(s.VocabVersionsSent))
		for k, v := range s.VocabVersionsSent {
			c.VocabVersionsSent[k] = v
		}
	}
	return &c
}

func (st *InMemorySessionStore) Create(_ context.Context, session *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.sessions[session.ID]; exists {
		return sentinel.ErrDuplicate
	}
	st.sessions[session.ID] = cloneSession(session)
	return nil
}

func (st *InMemorySessionStore) Get(_ context.Context, sessionID id.SessionID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSession(s), nil
}

func (st *InMemorySessionStore) Update(_ context.Context, session *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	st.sessions[session.ID] = cloneSession(session)
	return nil
}
