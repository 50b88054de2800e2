package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paygate/internal/contention"
	"github.com/punchamoorthee/paygate/internal/domain"
	"github.com/punchamoorthee/paygate/internal/models"
	"github.com/punchamoorthee/paygate/internal/otp"
	"github.com/punchamoorthee/paygate/internal/service"
	"github.com/punchamoorthee/paygate/internal/store"
)

type fakePayments struct {
	outcome   service.Outcome
	verdict   otp.Verification
	verifyErr error

	gotFields domain.IntentFields
	gotPolicy service.RetryPolicy
	calls     int
}

func (f *fakePayments) Execute(ctx context.Context, fields domain.IntentFields, policy service.RetryPolicy) service.Outcome {
	f.calls++
	f.gotFields = fields
	f.gotPolicy = policy
	return f.outcome
}

func (f *fakePayments) Verify(ctx context.Context, sessionID, code string) (otp.Verification, error) {
	return f.verdict, f.verifyErr
}

type fakeIntents struct {
	intent *domain.PaymentIntent
	err    error
}

func (f fakeIntents) Get(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	if f.intent != nil && f.intent.ID != id {
		return nil, nil
	}
	return f.intent, f.err
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func validRequest() map[string]interface{} {
	return map[string]interface{}{
		"card_number": "4111 1111-1111 1111",
		"expiry":      "12/25",
		"cvv":         "123",
		"holder_name": "Test User",
	}
}

func TestInitiatePayment_Success(t *testing.T) {
	p := &fakePayments{outcome: service.Outcome{
		Success: true, Message: service.MsgIssued, IntentID: "intent-1", SessionID: "session-1", Code: "123456", Attempts: 1,
	}}
	policy := service.RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond, AttemptDeadline: 400 * time.Millisecond}
	r := newRouter(NewHandler(p, fakeIntents{}, policy, nil))

	rec := do(t, r, "POST", "/api/v1/payments", validRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp models.InitiatePaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.OTP != "123456" || resp.SessionID != "session-1" || resp.PaymentID != "intent-1" {
		t.Errorf("response = %+v", resp)
	}

	if p.gotPolicy != policy {
		t.Errorf("policy = %+v, want %+v", p.gotPolicy, policy)
	}
	f := p.gotFields
	if f.CardLastFour != "1111" {
		t.Errorf("CardLastFour = %q, want %q", f.CardLastFour, "1111")
	}
	if !f.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Amount = %s, want default 100", f.Amount)
	}
	if f.Currency != "USD" || f.MerchantID != "demo_merchant" {
		t.Errorf("defaults = %q/%q, want USD/demo_merchant", f.Currency, f.MerchantID)
	}
}

func TestInitiatePayment_ExhaustedIsNotAnHTTPError(t *testing.T) {
	p := &fakePayments{outcome: service.Outcome{Message: service.MsgExhausted, IntentID: "intent-1", Attempts: 3}}
	r := newRouter(NewHandler(p, fakeIntents{}, service.RetryPolicy{}, nil))

	body := validRequest()
	body["amount"] = 42.499
	body["merchant_id"] = "merchant_7"
	rec := do(t, r, "POST", "/api/v1/payments", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.InitiatePaymentResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Success || resp.Message != service.MsgExhausted || resp.PaymentID != "intent-1" || resp.OTP != "" {
		t.Errorf("response = %+v", resp)
	}
	if !p.gotFields.Amount.Equal(decimal.RequireFromString("42.5")) {
		t.Errorf("Amount = %s, want 42.5", p.gotFields.Amount)
	}
	if p.gotFields.MerchantID != "merchant_7" {
		t.Errorf("MerchantID = %q, want merchant_7", p.gotFields.MerchantID)
	}
}

func TestInitiatePayment_Validation(t *testing.T) {
	testCases := []struct {
		name  string
		field string
		value interface{}
		want  string
	}{
		{"letters in card", "card_number", "4111abcd11111111", "Card number must contain only digits"},
		{"short card", "card_number", "411111111111", "Card number must be 13-19 digits"},
		{"long card", "card_number", "41111111111111111111", "Card number must be 13-19 digits"},
		{"expiry without slash", "expiry", "1225", "Expiry must be in MM/YY format"},
		{"expiry with two slashes", "expiry", "12/2/5", "Expiry must be in MM/YY format"},
		{"expiry letters", "expiry", "ab/25", "Expiry must contain only digits"},
		{"month 13", "expiry", "13/25", "Month must be between 01 and 12"},
		{"month 00", "expiry", "00/25", "Month must be between 01 and 12"},
		{"cvv letters", "cvv", "12a", "CVV must contain only digits"},
		{"cvv short", "cvv", "12", "CVV must be 3-4 digits"},
		{"zero amount", "amount", 0, "Amount must be positive"},
		{"negative amount", "amount", -5, "Amount must be positive"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePayments{}
			r := newRouter(NewHandler(p, fakeIntents{}, service.RetryPolicy{}, nil))

			body := validRequest()
			body[tc.field] = tc.value
			rec := do(t, r, "POST", "/api/v1/payments", body)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			var resp map[string]string
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp["error"] != tc.want {
				t.Errorf("error = %q, want %q", resp["error"], tc.want)
			}
			if p.calls != 0 {
				t.Error("invalid request should not reach the payment service")
			}
		})
	}
}

func TestInitiatePayment_MalformedJSON(t *testing.T) {
	r := newRouter(NewHandler(&fakePayments{}, fakeIntents{}, service.RetryPolicy{}, nil))
	rec := do(t, r, "POST", "/api/v1/payments", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyPayment(t *testing.T) {
	testCases := []struct {
		name       string
		verdict    otp.Verification
		err        error
		wantCode   int
		wantStatus string
	}{
		{"verified", otp.Verification{OK: true, Reason: otp.ReasonVerified}, nil, http.StatusOK, models.StatusPaymentSuccess},
		{"invalid code", otp.Verification{Reason: otp.ReasonInvalidCode}, nil, http.StatusOK, models.StatusPaymentFailed},
		{"expired", otp.Verification{Reason: otp.ReasonExpired}, nil, http.StatusOK, models.StatusPaymentFailed},
		{"store error", otp.Verification{}, errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePayments{verdict: tc.verdict, verifyErr: tc.err}
			r := newRouter(NewHandler(p, fakeIntents{}, service.RetryPolicy{}, nil))

			rec := do(t, r, "POST", "/api/v1/payments/verify", models.VerifyRequest{SessionID: "s-1", OTP: "123456"})
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantStatus == "" {
				return
			}
			var resp models.VerifyResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Status != tc.wantStatus || resp.Success != tc.verdict.OK || resp.Message != string(tc.verdict.Reason) {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestGetPayment(t *testing.T) {
	in := &domain.PaymentIntent{ID: "intent-1", Status: domain.StatusCodeSent, Amount: decimal.NewFromInt(10)}
	r := newRouter(NewHandler(&fakePayments{}, fakeIntents{intent: in}, service.RetryPolicy{}, nil))

	rec := do(t, r, "GET", "/api/v1/payments/intent-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got domain.PaymentIntent
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "intent-1" || got.Status != domain.StatusCodeSent {
		t.Errorf("intent = %+v", got)
	}

	rec = do(t, r, "GET", "/api/v1/payments/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	r = newRouter(NewHandler(&fakePayments{}, fakeIntents{err: errors.New("boom")}, service.RetryPolicy{}, nil))
	rec = do(t, r, "GET", "/api/v1/payments/intent-1", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("error status = %d, want 500", rec.Code)
	}
}

func TestHealthAndDebugConfig(t *testing.T) {
	view := models.ConfigView{OTPTimeoutMS: 400, PaymentRetryCount: 3, BaseWriteLatencyMS: 15, ContentionFactor: 1.5}
	r := newRouter(NewHandler(&fakePayments{}, fakeIntents{}, service.RetryPolicy{}, func() models.ConfigView { return view }))

	rec := do(t, r, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	rec = do(t, r, "GET", "/debug/config", nil)
	var got models.ConfigView
	json.NewDecoder(rec.Body).Decode(&got)
	if got != view {
		t.Errorf("config = %+v, want %+v", got, view)
	}
}

// Full stack over the memory store: initiate, verify, then read the completed intent back.
func TestPaymentFlow_EndToEnd(t *testing.T) {
	mem := store.NewMemoryStore()
	sim := contention.NewSimulator(contention.NewTracker(), contention.Model{Base: time.Millisecond, Factor: 1.5})
	intents := store.NewIntentStore(mem, sim, store.WithPollInterval(time.Millisecond))
	sessions := store.NewSessionStore(mem, intents, nil)
	svc := service.NewPaymentService(intents, otp.NewIssuer(intents, sessions, time.Minute), otp.NewVerifier(sessions), nil)
	policy := service.RetryPolicy{MaxAttempts: 3, Delay: 10 * time.Millisecond, AttemptDeadline: 400 * time.Millisecond}
	r := newRouter(NewHandler(svc, intents, policy, nil))

	rec := do(t, r, "POST", "/api/v1/payments", validRequest())
	var initiated models.InitiatePaymentResponse
	json.NewDecoder(rec.Body).Decode(&initiated)
	if !initiated.Success {
		t.Fatalf("initiate = %+v, want success", initiated)
	}

	rec = do(t, r, "POST", "/api/v1/payments/verify", models.VerifyRequest{SessionID: initiated.SessionID, OTP: initiated.OTP})
	var verified models.VerifyResponse
	json.NewDecoder(rec.Body).Decode(&verified)
	if verified.Status != models.StatusPaymentSuccess {
		t.Fatalf("verify = %+v, want payment_success", verified)
	}

	rec = do(t, r, "POST", "/api/v1/payments/verify", models.VerifyRequest{SessionID: initiated.SessionID, OTP: initiated.OTP})
	json.NewDecoder(rec.Body).Decode(&verified)
	if verified.Success || verified.Message != string(otp.ReasonAlreadyUsed) {
		t.Errorf("second verify = %+v, want already used", verified)
	}

	rec = do(t, r, "GET", "/api/v1/payments/"+initiated.PaymentID, nil)
	var in domain.PaymentIntent
	json.NewDecoder(rec.Body).Decode(&in)
	if in.Status != domain.StatusCompleted || in.CompletedAt == nil {
		t.Errorf("intent = %+v, want completed with timestamp", in)
	}
}
