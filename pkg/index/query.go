package index

import (
	"sort"

	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/index/status"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/dgraph-io/badger/v3"
)

// Entry returns a decoded history entry by token
func (ix *Index) Entry(token string) (model.HistoryEntry, error) {
	if cached, ok := ix.cache.Get(token); ok {
		return cached.(model.HistoryEntry), nil
	}
	var value []byte
	err := ix.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = get(txn, entryKey(token))
		return err
	})
	if err != nil {
		return model.HistoryEntry{}, err
	}
	e, err := decode(token, value)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	ix.cache.Add(token, e)
	return e, nil
}

// IDByPath resolves the object currently tracked at a path
func (ix *Index) IDByPath(pth string) (string, error) {
	var id string
	err := ix.db.View(func(txn *badger.Txn) error {
		v, err := get(txn, pathKey(pth))
		id = string(v)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// PathByID resolves the current path of an object
func (ix *Index) PathByID(id string) (string, error) {
	var pth string
	err := ix.db.View(func(txn *badger.Txn) error {
		v, err := get(txn, objectKey(id))
		pth = string(v)
		return err
	})
	if err != nil {
		return "", err
	}
	return pth, nil
}

// Has tells if an object is known to the index
func (ix *Index) Has(id string) (bool, error) {
	_, err := ix.PathByID(id)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Tokens lists the tokens of all the entries of an object, in commit order
func (ix *Index) Tokens(id string) ([]string, error) {
	var tokens []string
	err := ix.db.View(func(txn *badger.Txn) error {
		tokens = prefixKeys(txn, historyPrefix(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, status.ErrNotFound.WrapMessage("no history for object %s", id)
	}
	return tokens, nil
}

// History returns all the entries of an object, in commit order
func (ix *Index) History(id string) ([]model.HistoryEntry, error) {
	tokens, err := ix.Tokens(id)
	if err != nil {
		return nil, err
	}
	entries := make([]model.HistoryEntry, 0, len(tokens))
	for _, token := range tokens {
		e, err := ix.Entry(token)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// First returns the earliest entry of an object
func (ix *Index) First(id string) (model.HistoryEntry, error) {
	tokens, err := ix.Tokens(id)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	return ix.Entry(tokens[0])
}

// Latest returns the most recent entry of an object
func (ix *Index) Latest(id string) (model.HistoryEntry, error) {
	tokens, err := ix.Tokens(id)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	return ix.Entry(tokens[len(tokens)-1])
}

func (ix *Index) lookupToken(key []byte) (string, error) {
	var token string
	err := ix.db.View(func(txn *badger.Txn) error {
		v, err := get(txn, key)
		token = string(v)
		return err
	})
	return token, err
}

// ByVersion returns the latest entry recorded for an exact version of an object
func (ix *Index) ByVersion(id string, v model.Version) (model.HistoryEntry, error) {
	token, err := ix.lookupToken(versionKey(id, v))
	if err != nil {
		return model.HistoryEntry{}, err
	}
	return ix.Entry(token)
}

// ByChecksum returns the most recent entry carrying some checksum
func (ix *Index) ByChecksum(checksum string) (model.HistoryEntry, error) {
	token, err := ix.lookupToken(checksumKey(checksum))
	if err != nil {
		return model.HistoryEntry{}, err
	}
	return ix.Entry(token)
}

// Checksums lists all the checksums referenced by the history, sorted
func (ix *Index) Checksums() ([]string, error) {
	var checksums []string
	err := ix.db.View(func(txn *badger.Txn) error {
		checksums = prefixKeys(txn, checksumPref)
		return nil
	})
	return checksums, err
}

// Paths lists the tracked paths at or below some folder, sorted.
// An empty root lists all tracked paths.
func (ix *Index) Paths(root string) ([]string, error) {
	var paths []string
	err := ix.db.View(func(txn *badger.Txn) error {
		if root == "" {
			paths = prefixKeys(txn, pathPref)
			return nil
		}
		if _, err := get(txn, pathKey(root)); err != nil {
			return err
		}
		paths = append(paths, root)
		for _, rest := range prefixKeys(txn, descendantsPrefix(root)) {
			paths = append(paths, root+"/"+rest)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
