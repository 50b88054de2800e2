// Package contention models write contention on the shared store: a counter of in-flight writes and
// a latency model that stretches each write by the number of writes already running.
package contention

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScalingConstant damps the contention factor so that one extra writer adds factor*10% of base latency.
const ScalingConstant = 0.1

var (
	writesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paygate_writes_in_flight",
		Help: "Simulated store writes currently in flight",
	})

	writeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paygate_simulated_write_latency_seconds",
		Help:    "Synthetic latency applied to store writes",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

// Tracker counts writes in flight. One Tracker is shared by every store that simulates writes.
type Tracker struct {
	mu       sync.Mutex
	inFlight int
}

// NewTracker returns a Tracker at zero.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin registers a write and returns the number of writes that were already in flight.
func (t *Tracker) Begin() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	level := t.inFlight
	t.inFlight++
	writesInFlight.Set(float64(t.inFlight))
	return level
}

// End unregisters a write. The count never drops below zero.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	writesInFlight.Set(float64(t.inFlight))
}

// InFlight returns the current count.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Model is the contention-aware latency formula.
type Model struct {
	Base   time.Duration
	Factor float64
}

// Latency returns Base * (1 + level*Factor*ScalingConstant).
func (m Model) Latency(level int) time.Duration {
	if level < 0 {
		level = 0
	}
	return time.Duration(float64(m.Base) * (1 + float64(level)*m.Factor*ScalingConstant))
}

// Simulator wraps store writes with tracker accounting and synthetic latency.
type Simulator struct {
	tracker *Tracker
	model   Model
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSimulator returns a Simulator that charges writes against tracker using model.
func NewSimulator(tracker *Tracker, model Model) *Simulator {
	return &Simulator{tracker: tracker, model: model, sleep: Sleep}
}

// Tracker returns the tracker this simulator charges.
func (s *Simulator) Tracker() *Tracker {
	return s.tracker
}

// Model returns the latency model.
func (s *Simulator) Model() Model {
	return s.model
}

// Write runs fn as one tracked write: Begin, sleep for the contention latency, fn, End.
// End runs on every path, including a cancelled sleep and a failing fn.
func (s *Simulator) Write(ctx context.Context, fn func(ctx context.Context) error) error {
	level := s.tracker.Begin()
	defer s.tracker.End()

	d := s.model.Latency(level)
	writeLatency.Observe(d.Seconds())
	if err := s.sleep(ctx, d); err != nil {
		return err
	}
	return fn(ctx)
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
