package eventlog

import (
	"time"

	"github.com/pulsegrid/pulse-core/internal/telemetry"
)

// LogDeviceEvent logs a device telemetry event and emits a device.event
// signal with the same envelope as attributes.
//
// Parameters:
//   - deviceID: The reporting device
//   - eventType: Domain event type (e.g., "temperature", "gps")
//   - data: Decoded payload; may be nil
func (l *Log) LogDeviceEvent(deviceID, eventType string, data map[string]any) {
	envelope := map[string]any{
		"device_id":  deviceID,
		"event_type": eventType,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"data":       data,
	}

	l.Info("device event", envelope)
	l.bus.Emit(telemetry.SignalDeviceEvent,
		map[string]float64{"count": 1},
		envelope,
	)
}

// LogMQTTEvent logs a broker lifecycle event and emits an mqtt.event signal.
//
// Parameters:
//   - eventType: Broker event type (e.g., "connected", "disconnected")
//   - brokerInfo: Broker identity (host, port, client id); may be nil
//   - data: Additional event data; may be nil
func (l *Log) LogMQTTEvent(eventType string, brokerInfo map[string]any, data map[string]any) {
	envelope := map[string]any{
		"event_type": eventType,
		"broker":     brokerInfo,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"data":       data,
	}

	l.Info("mqtt event", envelope)
	l.bus.Emit(telemetry.SignalMQTTEvent,
		map[string]float64{"count": 1},
		envelope,
	)
}

// LogProcessingEvent logs a message processing completion and emits a
// processing.complete signal carrying the duration measurement.
//
// Parameters:
//   - messageID: Identifier of the processed message
//   - processingTimeMs: Wall-clock processing time in milliseconds
//   - result: Outcome label (e.g., "ok", "decode_failed")
func (l *Log) LogProcessingEvent(messageID string, processingTimeMs float64, result string) {
	envelope := map[string]any{
		"message_id":         messageID,
		"processing_time_ms": processingTimeMs,
		"result":             result,
	}

	l.Info("processing complete", envelope)
	l.bus.Emit(telemetry.SignalProcessingComplete,
		map[string]float64{
			"duration": processingTimeMs,
			"count":    1,
		},
		envelope,
	)
}
