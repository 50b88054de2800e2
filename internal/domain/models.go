package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentStatus is the lifecycle position of a PaymentIntent.
// Legal order: pending -> awaiting_code -> code_sent -> completed.
type IntentStatus string

const (
	StatusPending      IntentStatus = "pending"
	StatusAwaitingCode IntentStatus = "awaiting_code"
	StatusCodeSent     IntentStatus = "code_sent"
	StatusCompleted    IntentStatus = "completed"
)

// ReadyStatuses are the statuses from which a code may be issued.
var ReadyStatuses = []IntentStatus{StatusAwaitingCode, StatusCodeSent, StatusCompleted}

// IntentFields are the validated inputs needed to open a payment intent.
type IntentFields struct {
	MerchantID   string
	Amount       decimal.Decimal
	Currency     string
	CardLastFour string
	HolderName   string
}

// PaymentIntent represents one payment attempt and its progress.
// There is no failed status: an intent that stops progressing stays where it is.
type PaymentIntent struct {
	ID           string          `json:"id"`
	MerchantID   string          `json:"merchant_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CardLastFour string          `json:"card_last_four"`
	HolderName   string          `json:"holder_name"`
	Status       IntentStatus    `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// CodeSession binds a one-time code to an intent for a bounded window.
// Once Verified is set the record never changes again.
type CodeSession struct {
	ID         string     `json:"id"`
	IntentID   string     `json:"payment_intent_id"`
	Code       string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Verified   bool       `json:"verified"`
	Failed     bool       `json:"failed"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// Expired reports whether the session is past its expiry at now.
func (s *CodeSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AuditEntry is one row written by the audit-write mode of intent creation.
type AuditEntry struct {
	ID        string    `json:"id"`
	IntentID  string    `json:"payment_intent_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}
