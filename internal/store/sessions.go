package store

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/paygate/internal/contention"
	"github.com/punchamoorthee/paygate/internal/domain"
)

// SessionStore owns code sessions and pushes intent status forward as sessions are created and consumed.
type SessionStore struct {
	repo    SessionRepository
	intents *IntentStore
	writes  *contention.Simulator // nil: inserts are not charged to the tracker
	now     func() time.Time
}

// NewSessionStore returns a SessionStore. writes may be nil.
func NewSessionStore(repo SessionRepository, intents *IntentStore, writes *contention.Simulator) *SessionStore {
	return &SessionStore{
		repo:    repo,
		intents: intents,
		writes:  writes,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a session for intentID and moves the intent to code_sent.
// If the status update fails after the insert, the session is still returned: the code is usable and
// the intent simply lags behind.
func (s *SessionStore) Create(ctx context.Context, intentID, code string, expiresAt time.Time) (*domain.CodeSession, error) {
	cs := &domain.CodeSession{
		ID:        uuid.NewString(),
		IntentID:  intentID,
		Code:      code,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	}

	insert := func(ctx context.Context) error {
		return s.repo.InsertSession(ctx, cs)
	}
	var err error
	if s.writes != nil {
		err = s.writes.Write(ctx, insert)
	} else {
		err = insert(ctx)
	}
	if err != nil {
		return nil, wrap("create session", err)
	}

	if err := s.intents.MarkCodeSent(ctx, intentID); err != nil {
		log.Printf("store: session %s created but intent %s not advanced: %v", cs.ID, intentID, err)
	}
	return cs, nil
}

// Find returns the session for id, or nil if it does not exist.
func (s *SessionStore) Find(ctx context.Context, id string) (*domain.CodeSession, error) {
	cs, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, wrap("find session", err)
	}
	return cs, nil
}

// Consume marks the session verified exactly once. It reports whether this call was the one that
// applied. A successful consume completes the owning intent.
func (s *SessionStore) Consume(ctx context.Context, id string, success bool) (bool, error) {
	applied, err := s.repo.ConsumeSession(ctx, id, !success, s.now())
	if err != nil {
		return false, wrap("consume session", err)
	}
	if !applied || !success {
		return applied, nil
	}

	cs, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return true, wrap("find session", err)
	}
	if cs != nil {
		if err := s.intents.MarkCompleted(ctx, cs.IntentID); err != nil {
			return true, err
		}
	}
	return true, nil
}
