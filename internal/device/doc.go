// Package device tracks telemetry sources sighted by the harness.
//
// There is no provisioning: a device exists because it has sent a
// message. The SQLite-backed repository records each sighting (last
// event, last payload, running message count) and the Registry fronts
// it with a write-through in-memory cache for the per-message hot path.
package device
