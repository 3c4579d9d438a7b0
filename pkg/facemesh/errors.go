package facemesh

import "errors"

var (
	// ErrInvalidDimensions is returned when a frame width or height is not positive.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")

	// ErrIndexOutOfRange is returned when a landmark index is outside the supplied sequence.
	ErrIndexOutOfRange = errors.New("landmark index out of range")
)
