package resilience

import "errors"

// ErrCircuitOpen is returned when the breaker is tripped: the system is
// shedding load and the operation was rejected without being attempted.
// Check with errors.Is().
var ErrCircuitOpen = errors.New("resilience: circuit breaker open")
