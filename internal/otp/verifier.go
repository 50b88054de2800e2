package otp

import (
	"context"
	"time"

	"github.com/punchamoorthee/paygate/internal/domain"
)

// Reason is the human-readable verdict of a verification.
type Reason string

const (
	ReasonVerified       Reason = "Payment verified successfully"
	ReasonInvalidSession Reason = "Invalid or expired session"
	ReasonAlreadyUsed    Reason = "Code already used"
	ReasonExpired        Reason = "Code has expired"
	ReasonInvalidCode    Reason = "Invalid code"
)

// Verification is the outcome of Verify. Failures are reasons, not errors.
type Verification struct {
	OK     bool
	Reason Reason
}

// SessionConsumer is the part of the session store the verifier needs.
type SessionConsumer interface {
	Find(ctx context.Context, id string) (*domain.CodeSession, error)
	Consume(ctx context.Context, id string, success bool) (bool, error)
}

// Verifier checks submitted codes. Each session yields at most one durable verdict.
type Verifier struct {
	sessions SessionConsumer
	nowF     func() time.Time
}

func NewVerifier(sessions SessionConsumer) *Verifier {
	return &Verifier{
		sessions: sessions,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Verify checks code against the session: existence, prior use, expiry, then the code itself.
// Every terminal branch consumes the session once; a caller that loses the consume race reports
// ReasonAlreadyUsed instead of its own verdict.
func (v *Verifier) Verify(ctx context.Context, sessionID, code string) (Verification, error) {
	cs, err := v.sessions.Find(ctx, sessionID)
	if err != nil {
		return Verification{}, err
	}
	if cs == nil {
		return Verification{Reason: ReasonInvalidSession}, nil
	}
	if cs.Verified {
		return Verification{Reason: ReasonAlreadyUsed}, nil
	}

	switch {
	case cs.Expired(v.nowF()):
		return v.settle(ctx, sessionID, false, ReasonExpired)
	case !codesEqual(code, cs.Code):
		return v.settle(ctx, sessionID, false, ReasonInvalidCode)
	default:
		return v.settle(ctx, sessionID, true, ReasonVerified)
	}
}

func (v *Verifier) settle(ctx context.Context, sessionID string, success bool, reason Reason) (Verification, error) {
	applied, err := v.sessions.Consume(ctx, sessionID, success)
	if err != nil {
		return Verification{}, err
	}
	if !applied {
		return Verification{Reason: ReasonAlreadyUsed}, nil
	}
	return Verification{OK: success, Reason: reason}, nil
}
