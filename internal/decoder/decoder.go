package decoder

import (
	"encoding/json"
	"fmt"
)

// EventLog is the logging surface the decoder reports failures through.
// Satisfied by eventlog.Log.
type EventLog interface {
	Warning(msg string, meta map[string]any)
}

// Decoder converts raw telemetry payloads into structured mappings.
//
// No schema validation is performed here; field validation is a caller
// concern. The only contract is valid JSON with an object at the top
// level.
type Decoder struct {
	log EventLog
}

// New creates a decoder that reports failures through the given event log.
func New(log EventLog) *Decoder {
	return &Decoder{log: log}
}

// Parse decodes a JSON text payload into a mapping.
//
// On failure it logs exactly one warning through the event log and
// returns an error wrapping ErrDecode. Non-object top-level values
// (numbers, strings, arrays) are decode failures: the decoder's
// contract is a mapping.
//
// Parameters:
//   - text: The raw payload
//
// Returns:
//   - map[string]any: The decoded mapping, unchanged
//   - error: Wrapped ErrDecode describing the failure
func (d *Decoder) Parse(text string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		decodeErr := fmt.Errorf("%w: %v", ErrDecode, err)
		d.log.Warning("payload decode failed", map[string]any{
			"error": decodeErr.Error(),
		})
		return nil, decodeErr
	}
	if out == nil {
		// "null" decodes without error but is not a mapping.
		decodeErr := fmt.Errorf("%w: payload is not an object", ErrDecode)
		d.log.Warning("payload decode failed", map[string]any{
			"error": decodeErr.Error(),
		})
		return nil, decodeErr
	}
	return out, nil
}

// Encode serializes a mapping to JSON text. The inverse of Parse for
// mappings encodable without loss.
func Encode(m map[string]any) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return string(data), nil
}
