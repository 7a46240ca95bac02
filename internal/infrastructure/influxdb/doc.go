// Package influxdb provides time-series export for PulseGrid Core.
//
// Monitoring signals published on the telemetry bus are forwarded here
// (see telemetry.Exporter) and written as batched, non-blocking points.
// The connection is optional; when disabled in config the rest of the
// system runs unchanged.
package influxdb
