// Package index maintains a secondary index over the history of a repository.
//
// The history (WAL) is the source of truth. The index is a badger database
// derived from it: it may be dropped and replayed at any time. Lookups are
// served by object ID, current path, checksum and version. Decoded entries
// are kept in an LRU cache, since history entries never change once written.
package index

import (
	"time"

	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/index/status"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/wal"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	lru "github.com/hashicorp/golang-lru"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const defaultCacheSize = 1024

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Index over history entries
type Index struct {
	db        *badger.DB
	cache     *lru.Cache
	cacheSize int
	l         *zap.Logger
}

// Option for the index
type Option func(*Index)

// Logger sets a logger for the index and its database
func Logger(logger *zap.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.l = logger
		}
	}
}

// CacheSize sets the number of decoded entries kept in memory
func CacheSize(size int) Option {
	return func(ix *Index) {
		if size > 0 {
			ix.cacheSize = size
		}
	}
}

// badgerLogger adapts zap to the logger expected by badger
type badgerLogger struct {
	*zap.SugaredLogger
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.Warnf(format, args...)
}

// Open an index stored at dir. An empty dir holds the index in memory.
func Open(dir string, opts ...Option) (*Index, error) {
	ix := &Index{
		cacheSize: defaultCacheSize,
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(ix)
	}

	cache, err := lru.New(ix.cacheSize)
	if err != nil {
		return nil, status.ErrIndex.Wrap(err)
	}
	ix.cache = cache

	options := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{SugaredLogger: ix.l.Named("badger").Sugar()}).
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		options = options.WithInMemory(true)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, status.ErrIndex.WrapWithLog(ix.l, err, zap.String("dir", dir))
	}
	ix.db = db
	return ix, nil
}

// Close the index database
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

// Drop removes all indexed data
func (ix *Index) Drop() error {
	ix.cache.Purge()
	if err := ix.db.DropAll(); err != nil {
		return status.ErrIndex.Wrap(err)
	}
	return nil
}

// update runs a read-write transaction, retrying on conflicts
func (ix *Index) update(fn func(*badger.Txn) error) error {
	return backoff.Retry(func() error {
		err := ix.db.Update(fn)
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 10),
	)
}

// Last returns the token of the last entry applied, or empty for an empty index
func (ix *Index) Last() (string, error) {
	var last string
	err := ix.db.View(func(txn *badger.Txn) error {
		v, err := get(txn, lastKey)
		if err != nil {
			return err
		}
		last = string(v)
		return nil
	})
	if errors.Is(err, status.ErrNotFound) {
		return "", nil
	}
	return last, err
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, status.ErrNotFound.WrapMessage("key %s", string(key))
		}
		return nil, status.ErrIndex.Wrap(err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, status.ErrIndex.Wrap(err)
	}
	return v, nil
}

// prefixKeys lists keys under a prefix, with the prefix trimmed
func prefixKeys(txn *badger.Txn, prefix []byte) []string {
	it := txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: false,
		Prefix:         prefix,
	})
	defer it.Close()

	var keys []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, string(it.Item().Key()[len(prefix):]))
	}
	return keys
}

func decode(token string, value []byte) (model.HistoryEntry, error) {
	var e wal.Entry
	if err := json.Unmarshal(value, &e); err != nil {
		return model.HistoryEntry{}, status.ErrMalformed.WrapMessage("token %s: %v", token, err)
	}
	he, err := e.HistoryEntry()
	if err != nil {
		return model.HistoryEntry{}, status.ErrMalformed.WrapMessage("token %s: %v", token, err)
	}
	return he, nil
}
