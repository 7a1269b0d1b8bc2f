// Package status declares error constants returned by the index package.
package status

import "github.com/ccsi/dmflite/pkg/errors"

var (
	// ErrNotFound indicates that no indexed entry matches a query
	ErrNotFound = errors.New("not found in index")

	// ErrMalformed indicates an indexed entry which cannot be decoded
	ErrMalformed = errors.New("malformed indexed entry")

	// ErrIndex indicates a failure of the underlying key-value database
	ErrIndex = errors.New("index database error")

	// ErrReplay indicates a failure when replaying the history onto the index
	ErrReplay = errors.New("failed to replay history")
)
