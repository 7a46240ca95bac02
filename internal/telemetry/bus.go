package telemetry

import (
	"sync"
)

// Signal names published on the bus.
//
// Names are hierarchical and dot-separated; subscribers attach to exact
// names. The eventlog package subscribes to most of these and re-logs
// them as info records.
const (
	SignalApplicationStart   = "application.start"
	SignalApplicationStop    = "application.stop"
	SignalDeviceEvent        = "device.event"
	SignalMQTTEvent          = "mqtt.event"
	SignalProcessingComplete = "processing.complete"
	SignalErrorHandled       = "error.handled"
	SignalCircuitTripped     = "circuit_breaker.tripped"
	SignalLogSummary         = "log.summary"
)

// Handler receives a dispatched signal.
//
// Handlers are invoked synchronously on the publisher's goroutine, so
// they must be fast and must not publish to the bus re-entrantly with
// a blocking dependency on their own delivery.
type Handler func(name string, measurements map[string]float64, attributes map[string]any)

// attachment is a named handler bound to a set of signal names.
type attachment struct {
	id      string
	handler Handler
}

// Bus is the monitoring signal bus: an in-process publish/subscribe
// mechanism identified by hierarchical signal names.
//
// Publishers attach a numeric measurement mapping and an attribute
// mapping to each signal; every handler attached to that name receives
// the triple (name, measurements, attributes).
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - A panicking handler is recovered and does not affect the
//     publisher or other handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]attachment

	// logger for handler panic reporting (optional).
	logger Logger
}

// Logger is the optional logging interface used for handler failures.
type Logger interface {
	Error(msg string, args ...any)
}

// NewBus creates an empty signal bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]attachment),
	}
}

// SetLogger sets a logger used to report recovered handler panics.
func (b *Bus) SetLogger(logger Logger) {
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Attach registers a handler under the given id for each listed signal name.
// Attaching the same id again replaces its previous registrations.
func (b *Bus) Attach(id string, names []string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.detachLocked(id)
	for _, name := range names {
		b.handlers[name] = append(b.handlers[name], attachment{id: id, handler: handler})
	}
}

// Detach removes all registrations for the given id.
func (b *Bus) Detach(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked(id)
}

// detachLocked removes an id's registrations. Caller must hold b.mu.
func (b *Bus) detachLocked(id string) {
	for name, atts := range b.handlers {
		kept := atts[:0]
		for _, a := range atts {
			if a.id != id {
				kept = append(kept, a)
			}
		}
		if len(kept) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = kept
		}
	}
}

// Emit publishes a signal to every handler attached to its name.
//
// Dispatch is synchronous and in attachment order. Nil measurement or
// attribute maps are delivered as empty maps.
func (b *Bus) Emit(name string, measurements map[string]float64, attributes map[string]any) {
	if measurements == nil {
		measurements = map[string]float64{}
	}
	if attributes == nil {
		attributes = map[string]any{}
	}

	b.mu.RLock()
	atts := make([]attachment, len(b.handlers[name]))
	copy(atts, b.handlers[name])
	logger := b.logger
	b.mu.RUnlock()

	for _, a := range atts {
		b.invoke(a, name, measurements, attributes, logger)
	}
}

// invoke calls a single handler with panic recovery.
func (b *Bus) invoke(a attachment, name string, measurements map[string]float64, attributes map[string]any, logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("signal handler panic recovered",
					"signal", name,
					"handler_id", a.id,
					"panic", r,
				)
			}
		}
	}()

	a.handler(name, measurements, attributes)
}

// HandlerCount returns the number of handlers attached to a signal name.
func (b *Bus) HandlerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
