package repository

import "errors"

var (
	// ErrTagNotFound is returned when the requested tag id does not exist.
	ErrTagNotFound = errors.New("tag not found")

	// ErrUnitNotFound is returned when a unit reference record does not exist.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrDuplicateTagNumber is returned when an insert or update collides with
	// the (tag_number, tag_type) uniqueness constraint.
	ErrDuplicateTagNumber = errors.New("tag number already in use for this tag type")

	// ErrCycleDetected is returned when a containment mutation would make a
	// tag contain itself, directly or transitively.
	ErrCycleDetected = errors.New("tag containment cycle detected")

	// ErrUnsupported is returned by implementations that do not support a
	// query, instead of a silent empty result.
	ErrUnsupported = errors.New("operation not supported by this repository")
)
