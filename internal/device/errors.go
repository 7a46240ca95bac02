package device

import "errors"

// ErrDeviceNotFound is returned when a device ID has never been sighted.
// Check with errors.Is().
var ErrDeviceNotFound = errors.New("device: not found")
