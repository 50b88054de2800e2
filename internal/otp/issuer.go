package otp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/punchamoorthee/paygate/internal/domain"
)

// MinIssuanceBudget is the least time that must remain after the intent read to persist a session.
const MinIssuanceBudget = 50 * time.Millisecond

// DefaultValidity is how long an issued code stays valid.
const DefaultValidity = 2 * time.Minute

var tracer = otel.Tracer("github.com/punchamoorthee/paygate/internal/otp")

// Outcome tags an Issuance.
type Outcome int

const (
	// NotReady means the deadline ran out before a session could be issued. It is a normal result.
	NotReady Outcome = iota
	Issued
)

func (o Outcome) String() string {
	if o == Issued {
		return "issued"
	}
	return "not_ready"
}

// Issuance is the result of one Issue call. SessionID, Code and ExpiresAt are set only when Issued.
type Issuance struct {
	Outcome   Outcome
	SessionID string
	Code      string
	ExpiresAt time.Time
}

// IntentFinder is the bounded read the issuer depends on.
type IntentFinder interface {
	FindReady(ctx context.Context, id string, timeout time.Duration) (*domain.PaymentIntent, error)
}

// SessionCreator persists code sessions.
type SessionCreator interface {
	Create(ctx context.Context, intentID, code string, expiresAt time.Time) (*domain.CodeSession, error)
}

// Issuer mints a code session once the intent is readable, within a per-call deadline.
type Issuer struct {
	intents  IntentFinder
	sessions SessionCreator
	validity time.Duration
	generate func() (string, error)
	now      func() time.Time
}

// NewIssuer returns an Issuer. A non-positive validity falls back to DefaultValidity.
func NewIssuer(intents IntentFinder, sessions SessionCreator, validity time.Duration) *Issuer {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Issuer{
		intents:  intents,
		sessions: sessions,
		validity: validity,
		generate: GenerateCode,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue waits up to deadline for intentID to become issuable, then creates a session and code.
// It does not retry. Missing, late and slow-store cases all come back as NotReady.
func (i *Issuer) Issue(ctx context.Context, intentID string, deadline time.Duration) (Issuance, error) {
	ctx, span := tracer.Start(ctx, "otp.issue", trace.WithAttributes(
		attribute.String("payment.intent_id", intentID),
		attribute.Int64("otp.deadline_ms", deadline.Milliseconds()),
	))
	defer span.End()

	start := time.Now()
	in, err := i.intents.FindReady(ctx, intentID, deadline)
	if err != nil {
		span.RecordError(err)
		return Issuance{Outcome: NotReady}, err
	}
	if in == nil {
		span.SetAttributes(attribute.String("otp.outcome", "not_ready"))
		return Issuance{Outcome: NotReady}, nil
	}

	remaining := deadline - time.Since(start)
	if remaining < MinIssuanceBudget {
		span.SetAttributes(attribute.String("otp.outcome", "budget_exhausted"))
		return Issuance{Outcome: NotReady}, nil
	}

	code, err := i.generate()
	if err != nil {
		return Issuance{Outcome: NotReady}, err
	}
	expiresAt := i.now().Add(i.validity)

	writeCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	cs, err := i.sessions.Create(writeCtx, intentID, code, expiresAt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			span.SetAttributes(attribute.String("otp.outcome", "write_timeout"))
			return Issuance{Outcome: NotReady}, nil
		}
		span.RecordError(err)
		return Issuance{Outcome: NotReady}, err
	}

	span.SetAttributes(attribute.String("otp.outcome", "issued"))
	return Issuance{
		Outcome:   Issued,
		SessionID: cs.ID,
		Code:      code,
		ExpiresAt: cs.ExpiresAt,
	}, nil
}
