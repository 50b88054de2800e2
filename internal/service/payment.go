package service

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/punchamoorthee/paygate/internal/contention"
	"github.com/punchamoorthee/paygate/internal/domain"
	"github.com/punchamoorthee/paygate/internal/events"
	"github.com/punchamoorthee/paygate/internal/otp"
)

// Messages returned to callers. Exhaustion deliberately says nothing about why.
const (
	MsgIssued          = "Code generated successfully"
	MsgExhausted       = "Unable to generate code. Please try again."
	msgCreationFailure = "Payment creation failed: "
)

var tracer = otel.Tracer("github.com/punchamoorthee/paygate/internal/service")

var (
	issuanceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_code_issuance_attempts_total",
		Help: "Code issuance attempts, labeled by outcome",
	}, []string{"outcome"})

	paymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_payment_outcomes_total",
		Help: "Orchestrated payments, labeled by final state",
	}, []string{"state"})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_verifications_total",
		Help: "Code verifications, labeled by reason",
	}, []string{"reason"})
)

// RetryPolicy bounds the issuance loop.
type RetryPolicy struct {
	MaxAttempts     int
	Delay           time.Duration
	AttemptDeadline time.Duration
}

// Outcome is what a caller gets back from Execute.
// On failure IntentID is set whenever the intent was created, so its state can be inspected later.
type Outcome struct {
	Success   bool
	Message   string
	IntentID  string
	SessionID string
	Code      string
	Attempts  int
}

// IntentCreator opens payment intents.
type IntentCreator interface {
	Create(ctx context.Context, f domain.IntentFields) (*domain.PaymentIntent, error)
}

// CodeIssuer issues codes for an intent within a deadline.
type CodeIssuer interface {
	Issue(ctx context.Context, intentID string, deadline time.Duration) (otp.Issuance, error)
}

// CodeVerifier checks submitted codes.
type CodeVerifier interface {
	Verify(ctx context.Context, sessionID, code string) (otp.Verification, error)
}

// PaymentService drives a payment from intent creation to an issued code, and verifies codes.
type PaymentService struct {
	intents   IntentCreator
	issuer    CodeIssuer
	verifier  CodeVerifier
	publisher events.Publisher
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPaymentService wires the orchestrator. publisher may be nil.
func NewPaymentService(intents IntentCreator, issuer CodeIssuer, verifier CodeVerifier, publisher events.Publisher) *PaymentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PaymentService{
		intents:   intents,
		issuer:    issuer,
		verifier:  verifier,
		publisher: publisher,
		sleep:     contention.Sleep,
	}
}

// Execute creates an intent and then calls the issuer synchronously up to policy.MaxAttempts times.
//
// The retry delay does not release any store capacity: every retry lands on the same contended store
// that made the previous attempt late, which is how timeouts feed on themselves under load.
func (s *PaymentService) Execute(ctx context.Context, f domain.IntentFields, policy RetryPolicy) Outcome {
	ctx, span := tracer.Start(ctx, "payment.execute")
	defer span.End()

	in, err := s.intents.Create(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "intent creation failed")
		paymentOutcomes.WithLabelValues("creation_failed").Inc()
		events.PublishAsync(s.publisher, events.Event{Type: events.TypeCreationFailed, Reason: err.Error()})
		return Outcome{Message: msgCreationFailure + err.Error()}
	}
	span.SetAttributes(attribute.String("payment.intent_id", in.ID))

	attempts := 0
	for attempts < policy.MaxAttempts {
		attempts++
		iss, err := s.issuer.Issue(ctx, in.ID, policy.AttemptDeadline)
		if err != nil {
			log.Printf("payment: intent %s attempt %d: issuance error: %v", in.ID, attempts, err)
			issuanceAttempts.WithLabelValues("error").Inc()
		} else {
			issuanceAttempts.WithLabelValues(iss.Outcome.String()).Inc()
		}

		if err == nil && iss.Outcome == otp.Issued {
			span.SetAttributes(attribute.Int("payment.attempts", attempts))
			paymentOutcomes.WithLabelValues("issued").Inc()
			events.PublishAsync(s.publisher, events.Event{
				Type: events.TypeCodeIssued, IntentID: in.ID, SessionID: iss.SessionID, Attempts: attempts,
			})
			return Outcome{
				Success:   true,
				Message:   MsgIssued,
				IntentID:  in.ID,
				SessionID: iss.SessionID,
				Code:      iss.Code,
				Attempts:  attempts,
			}
		}

		if attempts < policy.MaxAttempts {
			if err := s.sleep(ctx, policy.Delay); err != nil {
				break
			}
		}
	}

	span.SetAttributes(attribute.Int("payment.attempts", attempts))
	span.SetStatus(codes.Error, "code issuance exhausted")
	paymentOutcomes.WithLabelValues("exhausted").Inc()
	events.PublishAsync(s.publisher, events.Event{Type: events.TypeCodeExhausted, IntentID: in.ID, Attempts: attempts})
	return Outcome{Message: MsgExhausted, IntentID: in.ID, Attempts: attempts}
}

// Verify checks a submitted code. Store failures come back as errors; every other verdict is a Verification.
func (s *PaymentService) Verify(ctx context.Context, sessionID, code string) (otp.Verification, error) {
	res, err := s.verifier.Verify(ctx, sessionID, code)
	if err != nil {
		verifications.WithLabelValues("error").Inc()
		return res, err
	}
	verifications.WithLabelValues(string(res.Reason)).Inc()

	typ := events.TypeVerificationFailed
	if res.OK {
		typ = events.TypeVerified
	}
	events.PublishAsync(s.publisher, events.Event{Type: typ, SessionID: sessionID, Reason: string(res.Reason)})
	return res, nil
}
