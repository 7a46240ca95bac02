// Package decoder converts raw JSON telemetry payloads into structured
// mappings. Decode failures are always recoverable: the decoder logs one
// warning and returns a wrapped ErrDecode, leaving retry and breaker
// decisions to the caller.
package decoder
