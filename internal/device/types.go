package device

import "time"

// Device is a telemetry source the harness has heard from.
//
// A device is created on its first sighting and updated on every
// subsequent message; there is no provisioning step.
type Device struct {
	// ID is the device identifier from the telemetry topic.
	ID string `json:"id"`

	// LastEvent is the event type of the most recent message.
	LastEvent string `json:"last_event"`

	// LastPayload is the decoded payload of the most recent message.
	LastPayload map[string]any `json:"last_payload"`

	// MessageCount is the total messages recorded for this device.
	MessageCount int64 `json:"message_count"`

	// FirstSeen is when the device was first sighted.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is when the device was most recently sighted.
	LastSeen time.Time `json:"last_seen"`
}
