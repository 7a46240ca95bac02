// Package eventlog provides the structured event log actor for
// PulseGrid Core.
//
// It is the single point of leveled, enriched logging: callers enqueue
// records (fire-and-forget) and a single worker goroutine serializes all
// emission through the logging package. Typed helpers for device, MQTT
// and processing events both log and publish a monitoring signal on the
// telemetry bus.
//
// The actor also subscribes to the standard signal set and re-logs each
// signal it sees, so observability tooling only ever needs the bus. A
// periodic summary reports uptime and log throughput.
package eventlog
