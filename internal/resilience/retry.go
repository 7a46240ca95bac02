package resilience

import (
	"fmt"
	"math"
	"time"
)

// maxJitterMs bounds the uniform random jitter added to every backoff.
const maxJitterMs = 1000

// retry drives the retry loop on the actor goroutine.
//
// Attempt 1 is immediate; each failure before the last sleeps
// backoffBaseMs * 2^(attempt-1) plus uniform jitter in [0, 1s), rounded
// to the nearest millisecond, then tries again. The final failure is
// returned unchanged so callers can match on the underlying reason.
// The sleep happens on the actor's execution path.
func (h *Handler) retry(fn RetryFunc, contextMeta map[string]any, maxAttempts int) (any, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 1
	for {
		result, err := invoke(fn)
		if err == nil {
			if attempt > 1 {
				h.log.Info("retry succeeded", map[string]any{
					"attempt": attempt,
					"context": contextMeta,
				})
			}
			return result, nil
		}

		if attempt >= maxAttempts {
			h.log.Error("retry attempts exhausted", map[string]any{
				"attempts": attempt,
				"error":    err.Error(),
				"context":  contextMeta,
			})
			return nil, err
		}

		delay := h.backoffDelay(attempt)
		h.log.Warning("operation failed, retrying", map[string]any{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"delay_ms":     delay.Milliseconds(),
			"error":        err.Error(),
			"context":      contextMeta,
		})
		h.sleep(delay)
		attempt++
	}
}

// invoke calls fn, converting a panic into an ordinary failure whose
// reason is the panic value.
func invoke(fn RetryFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return fn()
}

// backoffDelay computes the delay before the next attempt: exponential
// base doubling per attempt, plus uniform jitter to decorrelate
// concurrent retriers hitting the same dependency.
func (h *Handler) backoffDelay(attempt int) time.Duration {
	base := float64(h.cfg.BackoffBaseMs) * math.Pow(2, float64(attempt-1))
	jitter := h.rng.Float64() * maxJitterMs
	ms := math.Round(base + jitter)
	return time.Duration(ms) * time.Millisecond
}
