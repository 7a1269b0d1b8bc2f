package index

import (
	"context"

	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/index/status"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/wal"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Apply indexes a history entry.
//
// Entries must be applied in commit order. Entries at or before the last applied token are ignored,
// so that applying is idempotent. An entry whose message cannot be parsed is skipped.
// An entry whose record cannot be decoded is still indexed by id and path.
func (ix *Index) Apply(e wal.Entry) error {
	msg, err := model.ParseMessage(e.Message)
	if err != nil {
		ix.l.Warn("skipping unparsable history entry", zap.String("token", e.Token), zap.Error(err))
		return ix.update(func(txn *badger.Txn) error {
			if applied, err := isApplied(txn, e.Token); err != nil || applied {
				return err
			}
			return setLast(txn, e.Token)
		})
	}
	record, recordErr := model.DecodeRecord(msg.Record)
	if recordErr != nil {
		ix.l.Warn("indexing history entry with a malformed record",
			zap.String("token", e.Token), zap.String("id", msg.ID), zap.Error(recordErr))
	}

	value, err := json.Marshal(e)
	if err != nil {
		return status.ErrIndex.Wrap(err)
	}

	return ix.update(func(txn *badger.Txn) error {
		if applied, err := isApplied(txn, e.Token); err != nil || applied {
			return err
		}

		if err := ix.movePath(txn, msg.ID, msg.Path); err != nil {
			return err
		}
		sets := []struct{ k, v []byte }{
			{entryKey(e.Token), value},
			{historyKey(msg.ID, e.Token), []byte{}},
			{pathKey(msg.Path), []byte(msg.ID)},
			{objectKey(msg.ID), []byte(msg.Path)},
		}
		if recordErr == nil && !record.Folder {
			sets = append(sets, struct{ k, v []byte }{versionKey(msg.ID, record.Version), []byte(e.Token)})
			if record.Checksum != "" {
				sets = append(sets, struct{ k, v []byte }{checksumKey(record.Checksum), []byte(e.Token)})
			}
		}
		for _, kv := range sets {
			if err := txn.Set(kv.k, kv.v); err != nil {
				return status.ErrIndex.Wrap(err)
			}
		}
		return setLast(txn, e.Token)
	})
}

func isApplied(txn *badger.Txn, token string) (bool, error) {
	last, err := get(txn, lastKey)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return string(last) >= token, nil
}

func setLast(txn *badger.Txn, token string) error {
	if err := txn.Set(lastKey, []byte(token)); err != nil {
		return status.ErrIndex.Wrap(err)
	}
	return nil
}

// movePath re-points the path of an object which has moved, along with all the paths below it
func (ix *Index) movePath(txn *badger.Txn, id, newPath string) error {
	current, err := get(txn, objectKey(id))
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return nil
		}
		return err
	}
	oldPath := string(current)
	if oldPath == newPath {
		return nil
	}
	if err := txn.Delete(pathKey(oldPath)); err != nil {
		return status.ErrIndex.Wrap(err)
	}

	prefix := descendantsPrefix(oldPath)
	for _, rest := range prefixKeys(txn, prefix) {
		from := oldPath + "/" + rest
		to := model.Rebase(from, oldPath, newPath)
		descendant, err := get(txn, pathKey(from))
		if err != nil {
			return err
		}
		if err := txn.Delete(pathKey(from)); err != nil {
			return status.ErrIndex.Wrap(err)
		}
		if err := txn.Set(pathKey(to), descendant); err != nil {
			return status.ErrIndex.Wrap(err)
		}
		if err := txn.Set(objectKey(string(descendant)), []byte(to)); err != nil {
			return status.ErrIndex.Wrap(err)
		}
	}
	ix.l.Debug("moved indexed path", zap.String("id", id), zap.String("from", oldPath), zap.String("to", newPath))
	return nil
}

// Replay applies all the entries of a write-ahead log not yet indexed, and returns how many were applied
func (ix *Index) Replay(ctx context.Context, w *wal.WAL) (int, error) {
	last, err := ix.Last()
	if err != nil {
		return 0, status.ErrReplay.Wrap(err)
	}
	var applied int
	err = w.Walk(ctx, last, func(e wal.Entry) error {
		if err := ix.Apply(e); err != nil {
			return err
		}
		applied++
		return nil
	})
	if err != nil {
		return applied, status.ErrReplay.Wrap(err)
	}
	if applied > 0 {
		ix.l.Info("replayed history onto index", zap.Int("entries", applied), zap.String("from", last))
	}
	return applied, nil
}

// Rebuild drops the index and replays the whole history
func (ix *Index) Rebuild(ctx context.Context, w *wal.WAL) (int, error) {
	if err := ix.Drop(); err != nil {
		return 0, err
	}
	return ix.Replay(ctx, w)
}
