package service

import "errors"

// ErrNotTransportBox is returned when a transport-box composite targets a
// tag of some other type.
var ErrNotTransportBox = errors.New("tag is not a transport box")
