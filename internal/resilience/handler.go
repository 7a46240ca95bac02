package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/pulsegrid/pulse-core/internal/infrastructure/config"
	"github.com/pulsegrid/pulse-core/internal/telemetry"
)

// State represents the circuit breaker state.
type State string

const (
	// StateClosed admits operations normally.
	StateClosed State = "closed"

	// StateOpen rejects retryable operations immediately.
	StateOpen State = "open"

	// StateHalfOpen admits probing attempts after the cooldown. The state
	// is only left via a trip (back to open) or a manual reset (closed);
	// a successful probe resets the error count but not the state.
	StateHalfOpen State = "half_open"
)

// RetryFunc is a retryable operation. A panic inside the function is
// recovered and treated as a failure whose reason is the panic value.
type RetryFunc func() (any, error)

// EventLog is the logging surface the handler reports through.
// Satisfied by eventlog.Log.
type EventLog interface {
	Info(msg string, meta map[string]any)
	Warning(msg string, meta map[string]any)
	Error(msg string, meta map[string]any)
}

// Stats is a read-only snapshot of the handler state.
type Stats struct {
	ErrorCount              int        `json:"error_count"`
	CircuitState            State      `json:"circuit_state"`
	LastErrorTime           *time.Time `json:"last_error_time,omitempty"`
	UptimeSeconds           float64    `json:"uptime_seconds"`
	RetryAttempts           int        `json:"retry_attempts"`
	CircuitBreakerThreshold int        `json:"circuit_breaker_threshold"`
}

// Handler is the error-handling core: a single-goroutine actor owning
// the failure counter, circuit breaker state machine and retry driver.
//
// All state is owned by the Run loop and mutated only there; public
// methods enqueue an operation and wait for its reply, so concurrent
// callers are served strictly in arrival order. A retry sequence sleeps
// its backoff on the actor's own execution path, which means the actor
// serves no other caller while a retry is in flight: one retry sequence
// at a time, globally. Callers must expect to queue behind it.
//
// Restarting the actor (supervisor restart after a panic) re-enters Run
// with fresh default state: error counters and breaker memory are lost.
type Handler struct {
	cfg config.ResilienceConfig
	log EventLog
	bus *telemetry.Bus

	ops chan func()

	// Actor-owned state. Reset at the top of every Run.
	errorCount    int
	lastErrorTime *time.Time
	state         State
	startTime     time.Time
	rng           *rand.Rand

	// Hooks for tests; default to time.Sleep and time.Now.
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a handler actor. Call Run to start serving operations.
//
// Parameters:
//   - cfg: Retry and breaker settings (attempts, backoff base, threshold, cooldown)
//   - log: Event log for error/retry/breaker records
//   - bus: Monitoring signal bus for error.handled and circuit_breaker.tripped
func New(cfg config.ResilienceConfig, log EventLog, bus *telemetry.Bus) *Handler {
	return &Handler{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		ops:   make(chan func()),
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Run serves queued operations until the context is cancelled.
//
// State is initialised fresh on entry: closed breaker, zero error count,
// no last-error time. Run is intended to be supervised; it returns nil
// on context cancellation.
func (h *Handler) Run(ctx context.Context) error {
	h.errorCount = 0
	h.lastErrorTime = nil
	h.state = StateClosed
	h.startTime = h.now()
	h.rng = rand.New(rand.NewSource(h.now().UnixNano())) //nolint:gosec // jitter, not crypto

	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-h.ops:
			op()
		}
	}
}

// call runs fn on the actor goroutine and waits for completion.
func (h *Handler) call(fn func()) {
	done := make(chan struct{})
	h.ops <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// HandleError records a failure the caller has already observed, then
// optionally drives the retry algorithm on the caller's behalf.
//
// It increments the error count, stamps the last-error time, logs the
// error with its context and the updated breaker state, emits an
// error.handled signal, and evaluates the trip condition. If retryFn is
// supplied and the (possibly just-updated) breaker is not open, the
// retry algorithm runs with the configured attempts and backoff base;
// otherwise ErrCircuitOpen is returned immediately. The recording step
// itself does not consume a retry attempt.
//
// Parameters:
//   - opErr: The failure being recorded (opaque to the core)
//   - contextMeta: Caller-supplied diagnostic context; may be nil
//   - retryFn: Optional operation to retry; nil to only record
//
// Returns:
//   - any: The retried operation's result on success
//   - error: ErrCircuitOpen, or the final failure reason unchanged
func (h *Handler) HandleError(opErr error, contextMeta map[string]any, retryFn RetryFunc) (any, error) {
	var result any
	var err error
	h.call(func() {
		result, err = h.handleError(opErr, contextMeta, retryFn)
	})
	return result, err
}

// handleError runs on the actor goroutine.
func (h *Handler) handleError(opErr error, contextMeta map[string]any, retryFn RetryFunc) (any, error) {
	h.recordError()

	reason := "<nil>"
	if opErr != nil {
		reason = opErr.Error()
	}

	h.log.Error("handling error", map[string]any{
		"error":         reason,
		"context":       contextMeta,
		"error_count":   h.errorCount,
		"circuit_state": string(h.state),
	})

	h.bus.Emit(telemetry.SignalErrorHandled,
		map[string]float64{
			"count":        1,
			"total_errors": float64(h.errorCount),
		},
		map[string]any{
			"error":         reason,
			"context":       contextMeta,
			"circuit_state": string(h.state),
		},
	)

	h.evaluateTrip()

	if retryFn != nil && !h.circuitOpen() {
		return h.retry(retryFn, contextMeta, h.cfg.RetryAttempts)
	}
	return nil, ErrCircuitOpen
}

// WithRetry runs an operation under the retry algorithm.
//
// If the breaker is open the operation is rejected with ErrCircuitOpen
// without being invoked. Otherwise the retry algorithm runs; on success
// the error count is reset to zero, on final failure the error count is
// incremented and the trip condition evaluated.
//
// Parameters:
//   - fn: The operation to run
//   - contextMeta: Caller-supplied diagnostic context; may be nil
//   - maxAttempts: Maximum invocations of fn (at least 1)
//
// Returns:
//   - any: The operation's result on success
//   - error: ErrCircuitOpen, or the final failure reason unchanged
func (h *Handler) WithRetry(fn RetryFunc, contextMeta map[string]any, maxAttempts int) (any, error) {
	var result any
	var err error
	h.call(func() {
		result, err = h.withRetry(fn, contextMeta, maxAttempts)
	})
	return result, err
}

// withRetry runs on the actor goroutine.
func (h *Handler) withRetry(fn RetryFunc, contextMeta map[string]any, maxAttempts int) (any, error) {
	if h.circuitOpen() {
		return nil, ErrCircuitOpen
	}

	result, err := h.retry(fn, contextMeta, maxAttempts)
	if err == nil {
		h.errorCount = 0
		return result, nil
	}

	h.recordError()
	h.evaluateTrip()
	return nil, err
}

// CircuitOpen reports whether the breaker currently rejects operations.
//
// While open, the elapsed time since the last error is checked against
// the configured cooldown; once exceeded, the query itself transitions
// the breaker to half-open and reports false, admitting one probing
// attempt.
func (h *Handler) CircuitOpen() bool {
	var open bool
	h.call(func() {
		open = h.circuitOpen()
	})
	return open
}

// circuitOpen runs on the actor goroutine. Performs the lazy
// open -> half-open transition.
func (h *Handler) circuitOpen() bool {
	if h.state != StateOpen {
		return false
	}

	if h.lastErrorTime != nil {
		elapsed := h.now().Sub(*h.lastErrorTime)
		if elapsed > h.cfg.CircuitBreakerTimeout() {
			h.state = StateHalfOpen
			h.log.Info("circuit breaker entering half-open", map[string]any{
				"elapsed_ms": elapsed.Milliseconds(),
				"timeout_ms": h.cfg.CircuitBreakerTimeoutMs,
			})
			return false
		}
	}
	return true
}

// ResetCircuit forces the breaker closed and clears error history.
// Always succeeds, from any state.
func (h *Handler) ResetCircuit() {
	h.call(func() {
		h.state = StateClosed
		h.errorCount = 0
		h.lastErrorTime = nil
		h.log.Info("circuit breaker reset", map[string]any{
			"circuit_state": string(h.state),
		})
	})
}

// Stats returns a consistent snapshot of the handler state.
func (h *Handler) Stats() Stats {
	var s Stats
	h.call(func() {
		s = Stats{
			ErrorCount:              h.errorCount,
			CircuitState:            h.state,
			LastErrorTime:           h.lastErrorTime,
			UptimeSeconds:           h.now().Sub(h.startTime).Seconds(),
			RetryAttempts:           h.cfg.RetryAttempts,
			CircuitBreakerThreshold: h.cfg.CircuitBreakerThreshold,
		}
	})
	return s
}

// recordError increments the error count and stamps the last-error time.
func (h *Handler) recordError() {
	h.errorCount++
	t := h.now()
	h.lastErrorTime = &t
}

// evaluateTrip opens the breaker once the error count reaches the
// threshold, logging and signalling the transition.
func (h *Handler) evaluateTrip() {
	if h.errorCount < h.cfg.CircuitBreakerThreshold || h.state == StateOpen {
		return
	}

	h.state = StateOpen

	h.log.Warning("circuit breaker tripped", map[string]any{
		"error_count": h.errorCount,
		"threshold":   h.cfg.CircuitBreakerThreshold,
	})

	h.bus.Emit(telemetry.SignalCircuitTripped,
		map[string]float64{
			"error_count": float64(h.errorCount),
			"threshold":   float64(h.cfg.CircuitBreakerThreshold),
		},
		map[string]any{
			"circuit_state": string(h.state),
		},
	)
}
