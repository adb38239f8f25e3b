package image

import "errors"

// Memory image errors.
var (
	// ErrOutOfBounds is returned by Peek and Poke for addresses outside the image.
	ErrOutOfBounds = errors.New("address out of bounds")

	// ErrStackOverflow is returned when pushing onto a full stack.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is returned when popping an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrBadStringHeader is returned when a string header is malformed or the
	// string does not fit the destination buffer.
	ErrBadStringHeader = errors.New("bad string header")

	// ErrTableExhausted is returned when the index region has no room for a new entry.
	ErrTableExhausted = errors.New("symbol table exhausted")

	// ErrRegionExhausted is returned when the code or heap region is full.
	ErrRegionExhausted = errors.New("region exhausted")

	// ErrNameTooLong is returned for symbol names of MaxNameLen bytes or more.
	ErrNameTooLong = errors.New("symbol name too long")

	// ErrImageTooSmall is returned when the requested layout does not fit.
	ErrImageTooSmall = errors.New("image too small")

	// ErrInvalidImage is returned when an image fails the header checks.
	ErrInvalidImage = errors.New("invalid image")
)
