package telemetry

import "testing"

// capturingWriter records exported points.
type capturingWriter struct {
	names  []string
	tags   []map[string]string
	fields []map[string]interface{}
}

func (w *capturingWriter) WriteSignal(name string, tags map[string]string, fields map[string]interface{}) {
	w.names = append(w.names, name)
	w.tags = append(w.tags, tags)
	w.fields = append(w.fields, fields)
}

func TestExporterForwardsSignals(t *testing.T) {
	bus := NewBus()
	w := &capturingWriter{}

	e := NewExporter(bus, w, "node-1")
	e.Start()

	bus.Emit(SignalDeviceEvent,
		map[string]float64{"count": 1},
		map[string]any{
			"device_id": "thermo-01",
			"data":      map[string]any{"v": 1}, // non-string, not a tag
		},
	)

	if len(w.names) != 1 {
		t.Fatalf("writes = %d, want 1", len(w.names))
	}
	if w.names[0] != SignalDeviceEvent {
		t.Errorf("name = %q, want %q", w.names[0], SignalDeviceEvent)
	}
	if w.tags[0]["node"] != "node-1" {
		t.Errorf("node tag = %q, want node-1", w.tags[0]["node"])
	}
	if w.tags[0]["device_id"] != "thermo-01" {
		t.Errorf("device_id tag = %q, want thermo-01", w.tags[0]["device_id"])
	}
	if _, ok := w.tags[0]["data"]; ok {
		t.Error("non-string attribute exported as tag")
	}
	if w.fields[0]["count"] != float64(1) {
		t.Errorf("count field = %v, want 1", w.fields[0]["count"])
	}
}

func TestExporterStopDetaches(t *testing.T) {
	bus := NewBus()
	w := &capturingWriter{}

	e := NewExporter(bus, w, "node-1")
	e.Start()
	e.Stop()

	bus.Emit(SignalDeviceEvent, map[string]float64{"count": 1}, nil)

	if len(w.names) != 0 {
		t.Errorf("writes after Stop = %d, want 0", len(w.names))
	}
}
