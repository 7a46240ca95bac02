// Package resilience provides the error-handling core for PulseGrid
// Core: centralized failure recording, retry with exponential backoff
// and jitter, and a threshold-tripped circuit breaker.
//
// A single Handler actor owns all failure state. Components never build
// their own retry loops; they hand the operation and its failure context
// to the handler and get back a result or a final error. The breaker
// trips after a configured number of recorded failures and recovers
// lazily: the first state query after the cooldown moves it to
// half-open, admitting probe traffic.
//
// Handler restarts (under supervision) discard all failure state. That
// is deliberate: a handler that crashed is not a trustworthy witness to
// the failures it was counting.
package resilience
