// Package session persists POS register context (store, outlet, active
// cart) across register restarts, with a defined load/save/clear lifecycle.
package session

import (
	"context"
	"sync"
	"time"

	"tokodesk/backend/internal/domain"
)

type Store interface {
	Load(ctx context.Context, registerID string) (*domain.PosSession, bool, error)
	Save(ctx context.Context, session domain.PosSession) error
	Clear(ctx context.Context, registerID string) error
}

// MemoryStore keeps sessions in-process; the fallback when Redis is not
// configured. Sessions then survive page reloads but not server restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.PosSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.PosSession)}
}

func (m *MemoryStore) Load(_ context.Context, registerID string) (*domain.PosSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[registerID]
	if !ok {
		return nil, false, nil
	}
	copied := session
	return &copied, true, nil
}

func (m *MemoryStore) Save(_ context.Context, session domain.PosSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session.SavedAt = time.Now().UTC()
	m.sessions[session.RegisterID] = session
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, registerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, registerID)
	return nil
}
