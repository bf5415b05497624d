package store

import "errors"

// ErrCorruptRecord is returned when a stored record exists but cannot be
// parsed. Resolution treats this as a drop: redelivery cannot repair data
// already corrupted at rest.
var ErrCorruptRecord = errors.New("stored record unparsable")
