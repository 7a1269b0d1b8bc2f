// Package status declares error constants returned by
// the blob package.
package status

import (
	"github.com/ccsi/dmflite/pkg/errors"
)

var (
	// ErrNotFound indicates that no blob exists for a checksum
	ErrNotFound = errors.New("blob not found")

	// ErrChecksumMismatch indicates that the content of a blob does not match its checksum
	ErrChecksumMismatch = errors.New("blob checksum mismatch")

	// ErrCodec indicates a failure to compress or decompress a blob
	ErrCodec = errors.New("blob codec error")

	// ErrInvalidChecksum indicates a malformed checksum
	ErrInvalidChecksum = errors.New("invalid checksum")
)
