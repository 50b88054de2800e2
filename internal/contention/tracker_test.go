package contention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTracker_BeginReturnsPreIncrementLevel(t *testing.T) {
	tr := NewTracker()
	for want := 0; want < 3; want++ {
		if got := tr.Begin(); got != want {
			t.Errorf("Begin = %d, want %d", got, want)
		}
	}
	if tr.InFlight() != 3 {
		t.Errorf("InFlight = %d, want 3", tr.InFlight())
	}
}

func TestTracker_EndFlooredAtZero(t *testing.T) {
	tr := NewTracker()
	tr.End()
	tr.End()
	if tr.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", tr.InFlight())
	}
	if got := tr.Begin(); got != 0 {
		t.Errorf("Begin after extra End = %d, want 0", got)
	}
}

func TestTracker_ConcurrentPairsReturnToZero(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	var mu sync.Mutex
	negative := false

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level := tr.Begin()
			if level < 0 || tr.InFlight() < 0 {
				mu.Lock()
				negative = true
				mu.Unlock()
			}
			tr.End()
		}()
	}
	wg.Wait()

	if negative {
		t.Error("observed a negative contention count")
	}
	if tr.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0 after all pairs complete", tr.InFlight())
	}
}

func TestModel_Latency(t *testing.T) {
	m := Model{Base: 15 * time.Millisecond, Factor: 1.5}
	testCases := []struct {
		level int
		want  time.Duration
	}{
		{0, 15 * time.Millisecond},
		{1, 17250 * time.Microsecond},
		{10, 37500 * time.Microsecond},
	}
	for _, tc := range testCases {
		got := m.Latency(tc.level)
		if diff := got - tc.want; diff < -time.Microsecond || diff > time.Microsecond {
			t.Errorf("Latency(%d) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestModel_LatencyZeroBase(t *testing.T) {
	m := Model{Base: 0, Factor: 1.5}
	if got := m.Latency(50); got != 0 {
		t.Errorf("Latency = %v, want 0", got)
	}
}

func TestSimulator_WriteReleasesOnError(t *testing.T) {
	tr := NewTracker()
	sim := NewSimulator(tr, Model{Base: time.Millisecond, Factor: 1})
	boom := errors.New("boom")

	err := sim.Write(context.Background(), func(ctx context.Context) error {
		if tr.InFlight() != 1 {
			t.Errorf("InFlight during write = %d, want 1", tr.InFlight())
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if tr.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", tr.InFlight())
	}
}

func TestSimulator_WriteReleasesOnCancelledSleep(t *testing.T) {
	tr := NewTracker()
	sim := NewSimulator(tr, Model{Base: time.Second, Factor: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := sim.Write(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn should not run when the latency sleep is cancelled")
	}
	if tr.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", tr.InFlight())
	}
}

func TestSimulator_WriteUsesContentionLevel(t *testing.T) {
	tr := NewTracker()
	sim := NewSimulator(tr, Model{Base: 10 * time.Millisecond, Factor: 2})
	var slept time.Duration
	sim.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	tr.Begin()
	tr.Begin()
	defer tr.End()
	defer tr.End()

	if err := sim.Write(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// level 2: 10ms * (1 + 2*2*0.1) = 14ms
	if slept != 14*time.Millisecond {
		t.Errorf("slept = %v, want 14ms", slept)
	}
}
