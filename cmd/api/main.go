package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/punchamoorthee/paygate/internal/api"
	"github.com/punchamoorthee/paygate/internal/config"
	"github.com/punchamoorthee/paygate/internal/contention"
	"github.com/punchamoorthee/paygate/internal/events"
	"github.com/punchamoorthee/paygate/internal/models"
	"github.com/punchamoorthee/paygate/internal/otp"
	"github.com/punchamoorthee/paygate/internal/service"
	"github.com/punchamoorthee/paygate/internal/store"
	"github.com/punchamoorthee/paygate/internal/telemetry"
)

type repository interface {
	store.IntentRepository
	store.SessionRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer providers.Shutdown(context.Background())

	var repo repository
	if cfg.DBSource == "" {
		log.Println("DB_SOURCE not set, using in-memory store")
		repo = store.NewMemoryStore()
	} else {
		pg, err := store.NewPostgresStore(ctx, cfg.DBSource)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pg.Close()
		repo = pg
	}

	// Initialize Layers
	tracker := contention.NewTracker()
	writes := contention.NewSimulator(tracker, contention.Model{
		Base:   cfg.BaseWriteLatency(),
		Factor: cfg.ContentionFactor,
	})
	if err := providers.ObserveInFlight(tracker.InFlight); err != nil {
		log.Printf("telemetry: in-flight gauge: %v", err)
	}

	intents := store.NewIntentStore(repo, writes,
		store.WithPollInterval(cfg.PollInterval()),
		store.WithAuditDelay(cfg.AuditWriteLatency()),
	)
	var sessionWrites *contention.Simulator
	if cfg.SessionWriteContention {
		sessionWrites = writes
	}
	sessions := store.NewSessionStore(repo, intents, sessionWrites)

	var publisher events.Publisher = events.Nop{}
	if kp := events.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.KafkaTopic); kp != nil {
		log.Printf("publishing events to kafka topic %s", cfg.KafkaTopic)
		publisher = kp
	}
	defer publisher.Close()

	svc := service.NewPaymentService(
		intents,
		otp.NewIssuer(intents, sessions, cfg.Validity()),
		otp.NewVerifier(sessions),
		publisher,
	)
	policy := service.RetryPolicy{
		MaxAttempts:     cfg.RetryCount,
		Delay:           cfg.RetryDelay(),
		AttemptDeadline: cfg.OTPDeadline(),
	}
	handler := api.NewHandler(svc, intents, policy, func() models.ConfigView {
		return models.ConfigView{
			OTPTimeoutMS:           cfg.OTPDeadlineMS,
			PaymentRetryCount:      cfg.RetryCount,
			RetryDelayMS:           cfg.RetryDelayMS,
			BaseWriteLatencyMS:     cfg.BaseWriteLatencyMS,
			ContentionFactor:       cfg.ContentionFactor,
			AuditWriteLatencyMS:    cfg.AuditWriteLatencyMS,
			SessionWriteContention: cfg.SessionWriteContention,
			WritesInFlight:         tracker.InFlight(),
		}
	})

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	handler.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("server stopped")
}
