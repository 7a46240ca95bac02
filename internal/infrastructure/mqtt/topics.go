package mqtt

import "fmt"

// Topic prefixes for the PulseGrid topic hierarchy.
//
// Device payloads arrive on telemetry topics keyed by device ID; the core
// publishes its own status and events under the system and core prefixes.
const (
	// TopicPrefix is the base for all PulseGrid topics.
	TopicPrefix = "pulsegrid"

	// TopicPrefixCore is the base for core-published topics.
	TopicPrefixCore = "pulsegrid/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "pulsegrid/system"
)

// Topics provides builders for PulseGrid MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// DeviceTelemetry returns the topic a device publishes telemetry on.
//
// Example: pulsegrid/telemetry/thermo-hall-01
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefix, deviceID)
}

// AllDeviceTelemetry returns a pattern matching telemetry from every device.
//
// Pattern: pulsegrid/telemetry/+
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/telemetry/+", TopicPrefix)
}

// CoreEvent returns the topic for core-published events.
//
// Example: pulsegrid/core/event/circuit_breaker_tripped
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus returns the system status topic.
//
// Example: pulsegrid/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DeviceIDFromTopic extracts the device ID from a telemetry topic.
// Returns an empty string if the topic is not a telemetry topic.
func DeviceIDFromTopic(topic string) string {
	prefix := TopicPrefix + "/telemetry/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	return topic[len(prefix):]
}
