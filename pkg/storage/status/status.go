// Copyright © 2018 One Concern

// Package status declares error constants returned by
// implementations of the Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementions.
package status

import "github.com/ccsi/dmflite/pkg/errors"

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrNotExists indicates that the fetched object does not exist on storage
	ErrNotExists = errors.New("object doesn't exist")

	// ErrExists indicates that the resource already exists and cannot be overridden
	ErrExists = errors.New("exists already")

	// ErrObjectTooBig indicates that the object is too big and cannot be handled in memory
	ErrObjectTooBig = errors.New("object too big to be read into memory")

	// ErrInvalidResource indicates that the storage resource has an invalid name
	ErrInvalidResource = errors.New("invalid storage resource name")

	// ErrStorageAPI indicates any other storage error
	ErrStorageAPI = errors.New("storage error")
)
