// Package telemetry provides the monitoring signal bus for PulseGrid Core.
//
// The bus is an in-process publish/subscribe mechanism keyed by
// hierarchical signal names (device.event, error.handled,
// circuit_breaker.tripped, ...). Publishers attach numeric measurements
// and free-form attributes; subscribers receive both synchronously.
//
// Two standing subscribers exist in the system:
//   - the event log, which re-logs every signal as an info record
//   - the optional Exporter, which forwards signals to InfluxDB
//
// The event log is itself a publisher of device/mqtt/processing signals,
// so those appear twice in the log output: once from the direct log call
// and once from the re-logging subscription. This fan-out duplication is
// intentional; deduplication would hide the bus path from operators.
package telemetry
