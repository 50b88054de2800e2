package store

import (
	"context"
	"time"

	"github.com/punchamoorthee/paygate/internal/domain"
)

// Error is a persistence failure surfaced to callers. It is never retried inside the store.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// IntentRepository persists payment intents and their audit trail.
type IntentRepository interface {
	InsertIntent(ctx context.Context, in *domain.PaymentIntent) error
	// FindIntent returns the intent with id whose status is one of statuses (any status when empty),
	// or nil if there is none.
	FindIntent(ctx context.Context, id string, statuses ...domain.IntentStatus) (*domain.PaymentIntent, error)
	// UpdateIntentStatus sets the status unconditionally. A missing id is not an error.
	UpdateIntentStatus(ctx context.Context, id string, status domain.IntentStatus, completedAt *time.Time) error
	InsertAudit(ctx context.Context, e *domain.AuditEntry) error
}

// SessionRepository persists code sessions.
type SessionRepository interface {
	InsertSession(ctx context.Context, s *domain.CodeSession) error
	// GetSession returns the session for id, or nil if not found.
	GetSession(ctx context.Context, id string) (*domain.CodeSession, error)
	// ConsumeSession flips an unverified session to verified. It reports false when the session is
	// missing or was already verified.
	ConsumeSession(ctx context.Context, id string, failed bool, at time.Time) (bool, error)
}
