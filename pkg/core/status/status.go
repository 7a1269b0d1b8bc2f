// Package status exports errors produced by the core package.
package status

import (
	"github.com/ccsi/dmflite/pkg/errors"
)

var (
	// ErrNotFound indicates an object or version was not found
	ErrNotFound = errors.New("not found")

	// ErrMalformed indicates that some history exists but cannot be decoded
	ErrMalformed = errors.New("malformed history")

	// ErrPathExists indicates that a path is already tracked or taken in the working tree
	ErrPathExists = errors.New("path already exists")

	// ErrParentNotFound indicates that the parent folder of a new object does not exist
	ErrParentNotFound = errors.New("parent folder does not exist")

	// ErrRepoInit indicates that a repository could not be opened nor initialized
	ErrRepoInit = errors.New("cannot initialize repository")

	// ErrVersionNotIncreasing indicates a requested version which does not come after the latest one
	ErrVersionNotIncreasing = errors.New("version must be greater than the latest version")

	// ErrMajorVersionChanged indicates a metadata edit which does not keep the major version
	ErrMajorVersionChanged = errors.New("metadata edits keep the major version")

	// ErrNotAFolder indicates a folder operation attempted on a document
	ErrNotAFolder = errors.New("not a folder")

	// ErrNotADocument indicates a document operation attempted on a folder
	ErrNotADocument = errors.New("not a document")

	// ErrMalformedRef indicates a composite reference which cannot be parsed
	ErrMalformedRef = errors.New("malformed reference")

	// ErrChecksumMismatch indicates stored content which does not match its recorded checksum
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrBatchIncomplete indicates a multi-object upload which was only partially applied
	ErrBatchIncomplete = errors.New("batch upload incomplete")

	// ErrSystemFolder indicates an attempt to rename a folder managed by the repository
	ErrSystemFolder = errors.New("system folders cannot be renamed")

	// ErrClosed indicates an operation on a closed repository
	ErrClosed = errors.New("repository is closed")

	// ErrInvalidPath indicates a path which cannot be tracked
	ErrInvalidPath = errors.New("invalid path")
)
