package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/paygate/internal/domain"
	"github.com/punchamoorthee/paygate/internal/models"
	"github.com/punchamoorthee/paygate/internal/otp"
	"github.com/punchamoorthee/paygate/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paygate_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

// Payments is the slice of the payment service the handlers call.
type Payments interface {
	Execute(ctx context.Context, f domain.IntentFields, policy service.RetryPolicy) service.Outcome
	Verify(ctx context.Context, sessionID, code string) (otp.Verification, error)
}

// IntentReader loads a payment intent by ID. A missing intent is (nil, nil).
type IntentReader interface {
	Get(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

type Handler struct {
	payments Payments
	intents  IntentReader
	policy   service.RetryPolicy
	// configView returns the live configuration for /debug/config.
	configView func() models.ConfigView
}

func NewHandler(payments Payments, intents IntentReader, policy service.RetryPolicy, configView func() models.ConfigView) *Handler {
	if configView == nil {
		configView = func() models.ConfigView { return models.ConfigView{} }
	}
	return &Handler{
		payments:   payments,
		intents:    intents,
		policy:     policy,
		configView: configView,
	}
}

// Register mounts the payment routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/debug/config", h.DebugConfigHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/payments", h.InitiatePaymentHandler).Methods("POST")
	apiV1.HandleFunc("/payments/verify", h.VerifyPaymentHandler).Methods("POST")
	apiV1.HandleFunc("/payments/{id}", h.GetPaymentHandler).Methods("GET")
}

func respond(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, payload)
}

func respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	respond(w, code, map[string]string{"error": msg}, method, endpoint)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
