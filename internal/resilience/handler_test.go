package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulsegrid/pulse-core/internal/infrastructure/config"
	"github.com/pulsegrid/pulse-core/internal/telemetry"
)

// recordingLog captures event log calls for assertions.
type recordingLog struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	meta  map[string]any
}

func (l *recordingLog) Info(msg string, meta map[string]any) {
	l.record("info", msg, meta)
}

func (l *recordingLog) Warning(msg string, meta map[string]any) {
	l.record("warning", msg, meta)
}

func (l *recordingLog) Error(msg string, meta map[string]any) {
	l.record("error", msg, meta)
}

func (l *recordingLog) record(level, msg string, meta map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, meta: meta})
}

func (l *recordingLog) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

// fakeClock lets tests advance time observed by the actor.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testHarness struct {
	handler *Handler
	log     *recordingLog
	bus     *telemetry.Bus
	clock   *fakeClock
	sleeps  *atomic.Int64
}

func testConfig() config.ResilienceConfig {
	return config.ResilienceConfig{
		RetryAttempts:           3,
		BackoffBaseMs:           1000,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeoutMs: 30000,
	}
}

// startHandler builds a handler with instrumented sleep and clock hooks
// and runs its actor loop for the duration of the test.
func startHandler(t *testing.T, cfg config.ResilienceConfig) *testHarness {
	t.Helper()

	log := &recordingLog{}
	bus := telemetry.NewBus()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	sleeps := &atomic.Int64{}

	h := New(cfg, log, bus)
	h.now = clock.Now
	h.sleep = func(time.Duration) { sleeps.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testHarness{handler: h, log: log, bus: bus, clock: clock, sleeps: sleeps}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	th := startHandler(t, testConfig())

	calls := 0
	result, err := th.handler.WithRetry(func() (any, error) {
		calls++
		return "ok", nil
	}, nil, 3)
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if got := th.sleeps.Load(); got != 0 {
		t.Errorf("sleeps = %d, want 0", got)
	}
	if s := th.handler.Stats(); s.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0", s.ErrorCount)
	}
}

func TestWithRetryExhaustionReturnsLastError(t *testing.T) {
	th := startHandler(t, testConfig())

	boom := errors.New("boom")
	calls := 0
	result, err := th.handler.WithRetry(func() (any, error) {
		calls++
		return nil, boom
	}, map[string]any{"operation": "flaky"}, 2)
	if !errors.Is(err, boom) {
		t.Fatalf("WithRetry() error = %v, want boom", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := th.sleeps.Load(); got != 1 {
		t.Errorf("sleeps = %d, want 1", got)
	}
	if s := th.handler.Stats(); s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}
}

func TestWithRetryEventualSuccessResetsCount(t *testing.T) {
	th := startHandler(t, testConfig())

	// Seed some failure history first.
	if _, err := th.handler.HandleError(errors.New("seed"), nil, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("HandleError() error = %v, want ErrCircuitOpen", err)
	}
	if s := th.handler.Stats(); s.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", s.ErrorCount)
	}

	calls := 0
	result, err := th.handler.WithRetry(func() (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("not yet")
		}
		return 42, nil
	}, nil, 3)
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if result != 42 {
		t.Errorf("result = %v, want 42", result)
	}
	if got := th.sleeps.Load(); got != 2 {
		t.Errorf("sleeps = %d, want 2", got)
	}
	if s := th.handler.Stats(); s.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0 after success", s.ErrorCount)
	}
}

func TestRetryRecoversPanicAsFailure(t *testing.T) {
	th := startHandler(t, testConfig())

	_, err := th.handler.WithRetry(func() (any, error) {
		panic("kaboom")
	}, nil, 1)
	if err == nil {
		t.Fatal("WithRetry() error = nil, want panic failure")
	}
	if want := "panic: kaboom"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestCircuitTripsAtThreshold(t *testing.T) {
	th := startHandler(t, testConfig())

	var tripped atomic.Int64
	th.bus.Attach("test-trip", []string{telemetry.SignalCircuitTripped},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			tripped.Add(1)
			if measurements["error_count"] != 5 {
				t.Errorf("error_count = %v, want 5", measurements["error_count"])
			}
			if measurements["threshold"] != 5 {
				t.Errorf("threshold = %v, want 5", measurements["threshold"])
			}
		})

	for i := 0; i < 4; i++ {
		_, _ = th.handler.HandleError(errors.New("upstream down"), nil, nil)
	}
	if s := th.handler.Stats(); s.CircuitState != StateClosed {
		t.Fatalf("state after 4 errors = %v, want closed", s.CircuitState)
	}
	if got := tripped.Load(); got != 0 {
		t.Fatalf("tripped signals = %d, want 0", got)
	}

	_, _ = th.handler.HandleError(errors.New("upstream down"), nil, nil)
	if s := th.handler.Stats(); s.CircuitState != StateOpen {
		t.Fatalf("state after 5 errors = %v, want open", s.CircuitState)
	}
	if got := tripped.Load(); got != 1 {
		t.Errorf("tripped signals = %d, want 1", got)
	}
	if got := th.log.count("warning", "circuit breaker tripped"); got != 1 {
		t.Errorf("trip warnings = %d, want 1", got)
	}
}

func TestOpenCircuitRejectsWithoutInvoking(t *testing.T) {
	th := startHandler(t, testConfig())
	tripBreaker(t, th)

	calls := 0
	_, err := th.handler.WithRetry(func() (any, error) {
		calls++
		return "ok", nil
	}, nil, 3)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("WithRetry() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 while open", calls)
	}

	// HandleError with a retry function is rejected the same way.
	_, err = th.handler.HandleError(errors.New("more"), nil, func() (any, error) {
		calls++
		return "ok", nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("HandleError() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 while open", calls)
	}
}

func TestResetCircuitIsIdempotent(t *testing.T) {
	th := startHandler(t, testConfig())
	tripBreaker(t, th)

	for i := 0; i < 2; i++ {
		th.handler.ResetCircuit()
		s := th.handler.Stats()
		if s.CircuitState != StateClosed {
			t.Errorf("reset %d: state = %v, want closed", i, s.CircuitState)
		}
		if s.ErrorCount != 0 {
			t.Errorf("reset %d: ErrorCount = %d, want 0", i, s.ErrorCount)
		}
		if s.LastErrorTime != nil {
			t.Errorf("reset %d: LastErrorTime = %v, want nil", i, s.LastErrorTime)
		}
	}
}

func TestCooldownMovesOpenToHalfOpen(t *testing.T) {
	cfg := testConfig()
	th := startHandler(t, cfg)
	tripBreaker(t, th)

	if !th.handler.CircuitOpen() {
		t.Fatal("CircuitOpen() = false immediately after trip")
	}

	th.clock.Advance(cfg.CircuitBreakerTimeout() + time.Millisecond)

	if th.handler.CircuitOpen() {
		t.Fatal("CircuitOpen() = true after cooldown")
	}
	if s := th.handler.Stats(); s.CircuitState != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", s.CircuitState)
	}

	// A successful probe clears the error count but half-open persists
	// until a trip or a manual reset.
	if _, err := th.handler.WithRetry(func() (any, error) { return "ok", nil }, nil, 1); err != nil {
		t.Fatalf("probe WithRetry() error = %v", err)
	}
	s := th.handler.Stats()
	if s.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0", s.ErrorCount)
	}
	if s.CircuitState != StateHalfOpen {
		t.Errorf("state = %v, want half_open after probe success", s.CircuitState)
	}
}

func TestHandleErrorDrivesRetry(t *testing.T) {
	th := startHandler(t, testConfig())

	calls := 0
	result, err := th.handler.HandleError(errors.New("publish failed"),
		map[string]any{"operation": "publish"},
		func() (any, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("still failing")
			}
			return "delivered", nil
		})
	if err != nil {
		t.Fatalf("HandleError() error = %v", err)
	}
	if result != "delivered" {
		t.Errorf("result = %v, want delivered", result)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := th.log.count("error", "handling error"); got != 1 {
		t.Errorf("error records = %d, want 1", got)
	}
}

func TestHandleErrorEmitsSignal(t *testing.T) {
	th := startHandler(t, testConfig())

	var got atomic.Int64
	th.bus.Attach("test-handled", []string{telemetry.SignalErrorHandled},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			got.Add(1)
			if measurements["count"] != 1 {
				t.Errorf("count = %v, want 1", measurements["count"])
			}
			if measurements["total_errors"] != 1 {
				t.Errorf("total_errors = %v, want 1", measurements["total_errors"])
			}
			if attributes["error"] != "sensor offline" {
				t.Errorf("error attribute = %v, want sensor offline", attributes["error"])
			}
		})

	_, _ = th.handler.HandleError(errors.New("sensor offline"), map[string]any{"device_id": "d1"}, nil)
	if n := got.Load(); n != 1 {
		t.Errorf("error.handled signals = %d, want 1", n)
	}
}

func TestStatsSnapshot(t *testing.T) {
	cfg := testConfig()
	th := startHandler(t, cfg)

	th.clock.Advance(90 * time.Second)
	_, _ = th.handler.HandleError(errors.New("x"), nil, nil)

	s := th.handler.Stats()
	if s.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds = %v, want 90", s.UptimeSeconds)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}
	if s.LastErrorTime == nil {
		t.Error("LastErrorTime = nil, want set")
	}
	if s.RetryAttempts != cfg.RetryAttempts {
		t.Errorf("RetryAttempts = %d, want %d", s.RetryAttempts, cfg.RetryAttempts)
	}
	if s.CircuitBreakerThreshold != cfg.CircuitBreakerThreshold {
		t.Errorf("CircuitBreakerThreshold = %d, want %d", s.CircuitBreakerThreshold, cfg.CircuitBreakerThreshold)
	}
}

func TestRestartResetsState(t *testing.T) {
	cfg := testConfig()
	log := &recordingLog{}
	h := New(cfg, log, telemetry.NewBus())
	h.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()

	tripCount := cfg.CircuitBreakerThreshold
	for i := 0; i < tripCount; i++ {
		_, _ = h.HandleError(errors.New("fail"), nil, nil)
	}
	if s := h.Stats(); s.CircuitState != StateOpen {
		t.Fatalf("state = %v, want open before restart", s.CircuitState)
	}

	cancel()
	<-done

	// Re-entering Run models a supervisor restart.
	ctx2, cancel2 := context.WithCancel(context.Background())
	done2 := make(chan struct{})
	go func() {
		defer close(done2)
		_ = h.Run(ctx2)
	}()
	t.Cleanup(func() {
		cancel2()
		<-done2
	})

	s := h.Stats()
	if s.CircuitState != StateClosed {
		t.Errorf("state = %v, want closed after restart", s.CircuitState)
	}
	if s.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0 after restart", s.ErrorCount)
	}
	if s.LastErrorTime != nil {
		t.Errorf("LastErrorTime = %v, want nil after restart", s.LastErrorTime)
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	h := New(testConfig(), &recordingLog{}, telemetry.NewBus())
	h.rng = rand.New(rand.NewSource(1))

	tests := []struct {
		attempt int
		baseMs  int64
	}{
		{attempt: 1, baseMs: 1000},
		{attempt: 2, baseMs: 2000},
		{attempt: 3, baseMs: 4000},
		{attempt: 4, baseMs: 8000},
	}

	for _, tt := range tests {
		for i := 0; i < 50; i++ {
			d := h.backoffDelay(tt.attempt)
			ms := d.Milliseconds()
			if ms < tt.baseMs || ms > tt.baseMs+maxJitterMs {
				t.Fatalf("attempt %d: delay = %dms, want [%d, %d]ms",
					tt.attempt, ms, tt.baseMs, tt.baseMs+maxJitterMs)
			}
		}
	}
}

// tripBreaker records threshold failures so the breaker opens.
func tripBreaker(t *testing.T, th *testHarness) {
	t.Helper()
	for i := 0; i < th.handler.cfg.CircuitBreakerThreshold; i++ {
		_, _ = th.handler.HandleError(errors.New("induced"), nil, nil)
	}
	if s := th.handler.Stats(); s.CircuitState != StateOpen {
		t.Fatalf("breaker state = %v, want open", s.CircuitState)
	}
}
