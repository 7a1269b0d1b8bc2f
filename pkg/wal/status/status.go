// Package status declares error constants returned by
// the wal package.
package status

import (
	"github.com/ccsi/dmflite/pkg/errors"
)

var (
	// ErrTokenGenerate signals that we could not generate a new WAL token
	ErrTokenGenerate = errors.New("failed to generate token")

	// ErrKSUID indicates that we failed to generate a new ksuid.
	// An error here is telling of an issue with the random generator.
	ErrKSUID = errors.New("failed to generate ksuid")

	// ErrAddWALEntry indicates a failure when adding an entry to the log
	ErrAddWALEntry = errors.New("failed to add wal entry")

	// ErrReadWALEntry indicates a failure when reading an entry from the log
	ErrReadWALEntry = errors.New("failed to read wal entry")

	// ErrMaxCount indicates a wrong max count parameter (should be strictly positive)
	ErrMaxCount = errors.New("max count needs to be greater than 0")

	// ErrGetTokens indicates a failure when retrieving tokens
	ErrGetTokens = errors.New("failed to get tokens")

	// ErrInvalidToken indicates a token which is not a valid ksuid
	ErrInvalidToken = errors.New("invalid token")
)
