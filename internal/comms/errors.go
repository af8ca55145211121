package comms

import "errors"

// ErrValidation marks inbound payloads with missing or malformed fields.
// It is reported to the offending client; the connection stays open.
var ErrValidation = errors.New("validation failed")
