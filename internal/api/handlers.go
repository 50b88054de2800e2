package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paygate/internal/domain"
	"github.com/punchamoorthee/paygate/internal/models"
)

const (
	defaultAmount     = 100.00
	defaultCurrency   = "USD"
	defaultMerchantID = "demo_merchant"
)

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	// Stays healthy while issuance is degraded; the service is slow, not down.
	respond(w, http.StatusOK, map[string]string{"status": "healthy"}, "GET", "/health")
}

func (h *Handler) DebugConfigHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.configView(), "GET", "/debug/config")
}

func (h *Handler) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/payments"))
	defer timer.ObserveDuration()

	var req models.InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/payments")
		return
	}

	fields, err := intentFields(req)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error(), "POST", "/payments")
		return
	}

	out := h.payments.Execute(r.Context(), fields, h.policy)

	// Issuance failures are a normal response with success=false, not an HTTP error.
	respond(w, http.StatusOK, models.InitiatePaymentResponse{
		Success:   out.Success,
		Message:   out.Message,
		SessionID: out.SessionID,
		OTP:       out.Code,
		PaymentID: out.IntentID,
	}, "POST", "/payments")
}

func (h *Handler) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/payments/verify"))
	defer timer.ObserveDuration()

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/payments/verify")
		return
	}

	res, err := h.payments.Verify(r.Context(), req.SessionID, req.OTP)
	if err != nil {
		log.Printf("api: verify session %s: %v", req.SessionID, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/payments/verify")
		return
	}

	status := models.StatusPaymentFailed
	if res.OK {
		status = models.StatusPaymentSuccess
	}
	respond(w, http.StatusOK, models.VerifyResponse{
		Success: res.OK,
		Status:  status,
		Message: string(res.Reason),
	}, "POST", "/payments/verify")
}

func (h *Handler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	in, err := h.intents.Get(r.Context(), id)
	if err != nil {
		log.Printf("api: get payment %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/payments/{id}")
		return
	}
	if in == nil {
		respondError(w, http.StatusNotFound, "Payment not found", "GET", "/payments/{id}")
		return
	}
	respond(w, http.StatusOK, in, "GET", "/payments/{id}")
}

// intentFields validates the card details and fills defaults. Only the last four card digits are kept.
func intentFields(req models.InitiatePaymentRequest) (domain.IntentFields, error) {
	card, err := validateCardNumber(req.CardNumber)
	if err != nil {
		return domain.IntentFields{}, err
	}
	if err := validateExpiry(req.Expiry); err != nil {
		return domain.IntentFields{}, err
	}
	if err := validateCVV(req.CVV); err != nil {
		return domain.IntentFields{}, err
	}

	amount := decimal.NewFromFloat(defaultAmount)
	if req.Amount != nil {
		amount = decimal.NewFromFloat(*req.Amount).Round(2)
	}
	if !amount.IsPositive() {
		return domain.IntentFields{}, errors.New("Amount must be positive")
	}

	f := domain.IntentFields{
		MerchantID:   req.MerchantID,
		Amount:       amount,
		Currency:     req.Currency,
		CardLastFour: card[len(card)-4:],
		HolderName:   req.HolderName,
	}
	if f.MerchantID == "" {
		f.MerchantID = defaultMerchantID
	}
	if f.Currency == "" {
		f.Currency = defaultCurrency
	}
	return f, nil
}

func validateCardNumber(v string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(v)
	if !isDigits(cleaned) {
		return "", errors.New("Card number must contain only digits")
	}
	if len(cleaned) < 13 || len(cleaned) > 19 {
		return "", errors.New("Card number must be 13-19 digits")
	}
	return cleaned, nil
}

func validateExpiry(v string) error {
	parts := strings.Split(v, "/")
	if len(parts) != 2 {
		return errors.New("Expiry must be in MM/YY format")
	}
	if !isDigits(parts[0]) || !isDigits(parts[1]) {
		return errors.New("Expiry must contain only digits")
	}
	month, _ := strconv.Atoi(parts[0])
	if month < 1 || month > 12 {
		return errors.New("Month must be between 01 and 12")
	}
	return nil
}

func validateCVV(v string) error {
	if !isDigits(v) {
		return errors.New("CVV must contain only digits")
	}
	if len(v) < 3 || len(v) > 4 {
		return errors.New("CVV must be 3-4 digits")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
