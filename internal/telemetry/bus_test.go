package telemetry

import (
	"sync"
	"testing"
)

func TestEmitDispatchesToAttachedHandlers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Attach("a", []string{SignalDeviceEvent, SignalErrorHandled},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			got = append(got, "a:"+name)
		})
	bus.Attach("b", []string{SignalDeviceEvent},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			got = append(got, "b:"+name)
		})

	bus.Emit(SignalDeviceEvent, nil, nil)
	bus.Emit(SignalErrorHandled, nil, nil)
	bus.Emit(SignalLogSummary, nil, nil) // nobody attached

	want := []string{"a:device.event", "b:device.event", "a:error.handled"}
	if len(got) != len(want) {
		t.Fatalf("dispatches = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dispatch %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNilMapsDeliveredAsEmpty(t *testing.T) {
	bus := NewBus()

	bus.Attach("a", []string{SignalDeviceEvent},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			if measurements == nil {
				t.Error("measurements = nil, want empty map")
			}
			if attributes == nil {
				t.Error("attributes = nil, want empty map")
			}
		})

	bus.Emit(SignalDeviceEvent, nil, nil)
}

func TestDetachRemovesAllRegistrations(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Attach("a", []string{SignalDeviceEvent, SignalErrorHandled},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			calls++
		})

	bus.Detach("a")
	bus.Emit(SignalDeviceEvent, nil, nil)
	bus.Emit(SignalErrorHandled, nil, nil)

	if calls != 0 {
		t.Errorf("calls = %d, want 0 after detach", calls)
	}
	if bus.HandlerCount(SignalDeviceEvent) != 0 {
		t.Errorf("HandlerCount = %d, want 0", bus.HandlerCount(SignalDeviceEvent))
	}
}

func TestReattachReplacesPreviousRegistration(t *testing.T) {
	bus := NewBus()

	var firstCalls, secondCalls int
	bus.Attach("a", []string{SignalDeviceEvent},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			firstCalls++
		})
	bus.Attach("a", []string{SignalErrorHandled},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			secondCalls++
		})

	bus.Emit(SignalDeviceEvent, nil, nil)
	bus.Emit(SignalErrorHandled, nil, nil)

	if firstCalls != 0 {
		t.Errorf("first handler calls = %d, want 0 after replacement", firstCalls)
	}
	if secondCalls != 1 {
		t.Errorf("second handler calls = %d, want 1", secondCalls)
	}
}

// errorRecorder captures bus-level error logs.
type errorRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *errorRecorder) Error(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestPanickingHandlerDoesNotAffectOthers(t *testing.T) {
	bus := NewBus()
	rec := &errorRecorder{}
	bus.SetLogger(rec)

	survived := 0
	bus.Attach("panicker", []string{SignalDeviceEvent},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			panic("handler bug")
		})
	bus.Attach("survivor", []string{SignalDeviceEvent},
		func(name string, measurements map[string]float64, attributes map[string]any) {
			survived++
		})

	bus.Emit(SignalDeviceEvent, nil, nil)

	if survived != 1 {
		t.Errorf("survivor calls = %d, want 1", survived)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) != 1 {
		t.Errorf("panic logs = %d, want 1", len(rec.msgs))
	}
}
