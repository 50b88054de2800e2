package models

// InitiatePaymentRequest is the payload for POST /api/v1/payments.
type InitiatePaymentRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holder_name"`
	// Amount defaults to 100.00 when omitted.
	Amount     *float64 `json:"amount,omitempty"`
	Currency   string   `json:"currency"`
	MerchantID string   `json:"merchant_id"`
}

// InitiatePaymentResponse carries the issued code back to the caller. Demo only: a real gateway would deliver
// the code out of band.
type InitiatePaymentResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	OTP       string `json:"otp,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// VerifyRequest is the payload for POST /api/v1/payments/verify.
type VerifyRequest struct {
	SessionID string `json:"session_id"`
	OTP       string `json:"otp"`
}

// Verify status values.
const (
	StatusPaymentSuccess = "payment_success"
	StatusPaymentFailed  = "payment_failed"
)

type VerifyResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ConfigView is the /debug/config payload.
type ConfigView struct {
	OTPTimeoutMS           int     `json:"otp_timeout_ms"`
	PaymentRetryCount      int     `json:"payment_retry_count"`
	RetryDelayMS           int     `json:"retry_delay_ms"`
	BaseWriteLatencyMS     int     `json:"base_write_latency_ms"`
	ContentionFactor       float64 `json:"contention_factor"`
	AuditWriteLatencyMS    int     `json:"audit_write_latency_ms"`
	SessionWriteContention bool    `json:"session_write_contention"`
	WritesInFlight         int     `json:"writes_in_flight"`
}
