// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"io/ioutil"
	"sort"

	"github.com/ccsi/dmflite/pkg/storage/status"
)

const (
	// OverWrite replaces any existing object at the same key
	OverWrite = false

	// NoOverWrite fails with status.ErrExists when an object exists at the same key
	NoOverWrite = true

	// MaxObjectSizeInMemory bounds the size of objects read with ReadAll
	MaxObjectSizeInMemory = 2 * 1024 * 1024 * 1024 // 2 gigs
)

// Store implementations know how to write entries to a K/V model.Store.
//
// Typically this is something file system-like.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, source io.Reader, exclusive bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	KeysPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll fetches an object and reads it fully into memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	rdr, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	b, err := ioutil.ReadAll(io.LimitReader(rdr, MaxObjectSizeInMemory+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxObjectSizeInMemory {
		return nil, status.ErrObjectTooBig.WrapMessage("key %s", key)
	}
	return b, nil
}

// SortedKeys returns all the keys of a store in lexicographic order
func SortedKeys(ctx context.Context, store Store) ([]string, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
