package telemetry

// PointWriter is the sink interface for exported signals.
// Satisfied by influxdb.Client.
type PointWriter interface {
	WriteSignal(name string, tags map[string]string, fields map[string]interface{})
}

// exporterID is the bus attachment id used by the exporter.
const exporterID = "telemetry-exporter"

// Exporter forwards bus signals to a time-series sink.
//
// Measurements become point fields; string-valued attributes become tags.
// Non-string attributes are dropped from the export (they remain visible
// in the event log).
type Exporter struct {
	bus    *Bus
	writer PointWriter
	node   string
}

// NewExporter creates an exporter bound to a bus and sink.
// Call Start to begin forwarding.
func NewExporter(bus *Bus, writer PointWriter, node string) *Exporter {
	return &Exporter{
		bus:    bus,
		writer: writer,
		node:   node,
	}
}

// Start attaches the exporter to the standard signal set.
func (e *Exporter) Start() {
	names := []string{
		SignalApplicationStart,
		SignalApplicationStop,
		SignalDeviceEvent,
		SignalMQTTEvent,
		SignalProcessingComplete,
		SignalErrorHandled,
		SignalCircuitTripped,
	}
	e.bus.Attach(exporterID, names, e.handle)
}

// Stop detaches the exporter from the bus.
func (e *Exporter) Stop() {
	e.bus.Detach(exporterID)
}

// handle converts one signal into a point write.
func (e *Exporter) handle(name string, measurements map[string]float64, attributes map[string]any) {
	tags := map[string]string{"node": e.node}
	for k, v := range attributes {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}

	fields := make(map[string]interface{}, len(measurements))
	for k, v := range measurements {
		fields[k] = v
	}

	e.writer.WriteSignal(name, tags, fields)
}
