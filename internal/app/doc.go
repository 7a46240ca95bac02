// Package app is the application shell for PulseGrid Core.
//
// The Shell constructs and wires every component (event log, decoder,
// resilience handler, device registry, MQTT client, optional InfluxDB
// export), runs the actor children under a one-for-one Supervisor, and
// exposes the message processing path and health checks.
package app
