// Package events publishes payment lifecycle events. Publication is best-effort: callers log and move on.
package events

import (
	"context"
	"log"
	"time"
)

// Event types.
const (
	TypeCreationFailed     = "payment.creation_failed"
	TypeCodeIssued         = "payment.code_issued"
	TypeCodeExhausted      = "payment.code_exhausted"
	TypeVerified           = "payment.verified"
	TypeVerificationFailed = "payment.verification_failed"
)

// publishTimeout bounds a single async publish.
const publishTimeout = 5 * time.Second

// Event is one lifecycle event.
type Event struct {
	Type      string    `json:"type"`
	IntentID  string    `json:"payment_intent_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	// Close releases resources. Safe to call more than once.
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// PublishAsync publishes ev on its own goroutine with publishTimeout, detached from the caller's
// context so a finished request does not abort the write. p may be nil.
func PublishAsync(p Publisher, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			log.Printf("events: publish %s failed: %v", ev.Type, err)
		}
	}()
}
