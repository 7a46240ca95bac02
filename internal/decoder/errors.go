package decoder

import "errors"

// ErrDecode is returned for any malformed payload.
// Always recoverable; check with errors.Is().
var ErrDecode = errors.New("decoder: malformed payload")
