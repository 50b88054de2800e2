package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/paygate/internal/contention"
	"github.com/punchamoorthee/paygate/internal/domain"
)

// DefaultPollInterval is how often FindReady re-reads the store.
const DefaultPollInterval = 10 * time.Millisecond

// IntentStore owns payment intents. Creation goes through the contention simulator; reads and
// status writes do not.
type IntentStore struct {
	repo         IntentRepository
	writes       *contention.Simulator
	pollInterval time.Duration
	auditDelay   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// IntentOption customizes an IntentStore.
type IntentOption func(*IntentStore)

// WithPollInterval sets the FindReady poll interval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) IntentOption {
	return func(s *IntentStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithAuditDelay turns on audit-write mode: creation also writes a "created" and a "status_changed"
// audit entry, each preceded by d, inside the same tracked write.
func WithAuditDelay(d time.Duration) IntentOption {
	return func(s *IntentStore) {
		s.auditDelay = d
	}
}

// NewIntentStore returns an IntentStore over repo whose creations are charged to writes.
func NewIntentStore(repo IntentRepository, writes *contention.Simulator, opts ...IntentOption) *IntentStore {
	s := &IntentStore{
		repo:         repo,
		writes:       writes,
		pollInterval: DefaultPollInterval,
		sleep:        contention.Sleep,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new intent as pending and advances it to awaiting_code.
// If persistence fails the row may be left pending; nothing is rolled back.
func (s *IntentStore) Create(ctx context.Context, f domain.IntentFields) (*domain.PaymentIntent, error) {
	in := &domain.PaymentIntent{
		ID:           uuid.NewString(),
		MerchantID:   f.MerchantID,
		Amount:       f.Amount,
		Currency:     f.Currency,
		CardLastFour: f.CardLastFour,
		HolderName:   f.HolderName,
		Status:       domain.StatusPending,
		CreatedAt:    s.now(),
	}

	err := s.writes.Write(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertIntent(ctx, in); err != nil {
			return err
		}
		if err := s.audit(ctx, in.ID, "created"); err != nil {
			return err
		}
		if err := s.repo.UpdateIntentStatus(ctx, in.ID, domain.StatusAwaitingCode, nil); err != nil {
			return err
		}
		in.Status = domain.StatusAwaitingCode
		return s.audit(ctx, in.ID, "status_changed")
	})
	if err != nil {
		return nil, wrap("create intent", err)
	}
	return in, nil
}

func (s *IntentStore) audit(ctx context.Context, intentID, action string) error {
	if s.auditDelay <= 0 {
		return nil
	}
	if err := s.sleep(ctx, s.auditDelay); err != nil {
		return err
	}
	return s.repo.InsertAudit(ctx, &domain.AuditEntry{
		ID:        uuid.NewString(),
		IntentID:  intentID,
		Action:    action,
		CreatedAt: s.now(),
	})
}

// FindReady waits up to timeout for intent id to reach a status from which a code can be issued.
// It returns nil, nil when the wait runs out; a missing intent, a slow one, and a slow store all look
// the same to the caller. A timeout of zero or less never finds anything.
func (s *IntentStore) FindReady(ctx context.Context, id string, timeout time.Duration) (*domain.PaymentIntent, error) {
	if timeout <= 0 {
		return nil, nil
	}
	start := time.Now()
	for {
		in, err := s.repo.FindIntent(ctx, id, domain.ReadyStatuses...)
		if err != nil {
			return nil, wrap("find intent", err)
		}
		if in != nil {
			return in, nil
		}

		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			return nil, nil
		}
		if err := s.sleep(ctx, min(s.pollInterval, remaining)); err != nil {
			return nil, nil
		}
	}
}

// Get returns the intent regardless of status, or nil if it does not exist.
func (s *IntentStore) Get(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	in, err := s.repo.FindIntent(ctx, id)
	if err != nil {
		return nil, wrap("get intent", err)
	}
	return in, nil
}

// MarkCodeSent sets the intent to code_sent. Missing intents are ignored.
func (s *IntentStore) MarkCodeSent(ctx context.Context, id string) error {
	return wrap("mark code sent", s.repo.UpdateIntentStatus(ctx, id, domain.StatusCodeSent, nil))
}

// MarkCompleted sets the intent to completed and stamps the completion time. Missing intents are ignored.
func (s *IntentStore) MarkCompleted(ctx context.Context, id string) error {
	now := s.now()
	return wrap("mark completed", s.repo.UpdateIntentStatus(ctx, id, domain.StatusCompleted, &now))
}
