package boundary

import "errors"

var (
	// ErrHostAllocation means the host-owned output buffer could not be
	// allocated. The native image has been released regardless.
	ErrHostAllocation = errors.New("boundary: host buffer allocation failed")

	// ErrShortBuffer means the engine reported more pixels than it supplied.
	ErrShortBuffer = errors.New("boundary: native buffer shorter than its dimensions")

	// ErrBadDimensions means the engine image has non-positive or
	// overflowing dimensions.
	ErrBadDimensions = errors.New("boundary: invalid image dimensions")
)
