package model

import "github.com/ccsi/dmflite/pkg/errors"

var (
	// ErrMalformedVersion indicates a version string that is not "major.minor"
	ErrMalformedVersion = errors.New("malformed version")

	// ErrMalformedRef indicates a composite reference that is not "id;major.minor"
	ErrMalformedRef = errors.New("malformed composite reference")

	// ErrMalformedRecord indicates a metadata record that cannot be decoded
	ErrMalformedRecord = errors.New("malformed metadata record")

	// ErrMalformedMessage indicates a history entry message that does not follow the expected layout
	ErrMalformedMessage = errors.New("malformed history message")

	// ErrInvalidPath indicates a path that cannot be tracked by the store
	ErrInvalidPath = errors.New("invalid path")
)
