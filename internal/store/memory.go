package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/punchamoorthee/paygate/internal/domain"
)

// MemoryStore is an in-process IntentRepository and SessionRepository.
// Records are copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	intents  map[string]domain.PaymentIntent
	sessions map[string]domain.CodeSession
	audit    []domain.AuditEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:  make(map[string]domain.PaymentIntent),
		sessions: make(map[string]domain.CodeSession),
	}
}

func (m *MemoryStore) InsertIntent(ctx context.Context, in *domain.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[in.ID] = *in
	return nil
}

func (m *MemoryStore) FindIntent(ctx context.Context, id string, statuses ...domain.IntentStatus) (*domain.PaymentIntent, error) {
	m.mu.RLock()
	in, ok := m.intents[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if len(statuses) > 0 && !slices.Contains(statuses, in.Status) {
		return nil, nil
	}
	return &in, nil
}

func (m *MemoryStore) UpdateIntentStatus(ctx context.Context, id string, status domain.IntentStatus, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return nil
	}
	in.Status = status
	if completedAt != nil {
		at := *completedAt
		in.CompletedAt = &at
	}
	m.intents[id] = in
	return nil
}

func (m *MemoryStore) InsertAudit(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

// AuditTrail returns the audit entries recorded for intentID in write order.
func (m *MemoryStore) AuditTrail(intentID string) []domain.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.AuditEntry
	for _, e := range m.audit {
		if e.IntentID == intentID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryStore) InsertSession(ctx context.Context, s *domain.CodeSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*domain.CodeSession, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) ConsumeSession(ctx context.Context, id string, failed bool, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Verified {
		return false, nil
	}
	s.Verified = true
	s.Failed = failed
	s.VerifiedAt = &at
	m.sessions[id] = s
	return true, nil
}
