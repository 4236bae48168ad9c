package buffer

import "errors"

// ErrInvalidInput marks a zero length passed to a constructor or to
// Resize.
var ErrInvalidInput = errors.New("buffer: invalid input")

// ErrInvalidData marks an attempt to open a zero-length file
// read-only: there is no buffer to open.
var ErrInvalidData = errors.New("buffer: invalid data")
