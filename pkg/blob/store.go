// Package blob provides a content-addressable store for object contents.
//
// Blobs are identified by the checksum of their uncompressed content and
// stored zstd-compressed on a storage.Store, with a 2-character fan-out.
// Blobs are never overwritten: historical contents stay readable at any time
// without touching the working tree.
package blob

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ccsi/dmflite/pkg/blob/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/storage"
	storagestatus "github.com/ccsi/dmflite/pkg/storage/status"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Store holds content blobs
type Store struct {
	store   storage.Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	l       *zap.Logger
}

// Option for the blob store
type Option func(*Store)

// Logger sets a logger for this blob store
func Logger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.l = logger
		}
	}
}

// New builds a blob store on top of some storage
func New(store storage.Store, opts ...Option) (*Store, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, status.ErrCodec.Wrap(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, status.ErrCodec.Wrap(err)
	}
	s := &Store{
		store:   store,
		encoder: enc,
		decoder: dec,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s, nil
}

// Close releases the codec resources
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

func (s *Store) String() string {
	return "blobs@" + s.store.String()
}

func validChecksum(checksum string) error {
	if !model.IsChecksum(checksum) {
		return status.ErrInvalidChecksum.WrapMessage("%q", checksum)
	}
	return nil
}

// Has tells if a blob exists for some checksum
func (s *Store) Has(ctx context.Context, checksum string) (bool, error) {
	if err := validChecksum(checksum); err != nil {
		return false, err
	}
	return s.store.Has(ctx, model.GetBlobKey(checksum))
}

// Put stores some content and returns its checksum.
//
// Storing content which already exists is a no-op.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	checksum := model.Checksum(data)
	has, err := s.Has(ctx, checksum)
	if err != nil {
		return "", err
	}
	if has {
		s.l.Debug("blob already stored", zap.String("checksum", checksum))
		return checksum, nil
	}

	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	err = s.store.Put(ctx, model.GetBlobKey(checksum), bytes.NewReader(compressed), storage.NoOverWrite)
	if err != nil && !errors.Is(err, storagestatus.ErrExists) {
		return "", err
	}
	s.l.Debug("stored blob",
		zap.String("checksum", checksum),
		zap.Int("size", len(data)),
		zap.Int("compressed", len(compressed)),
	)
	return checksum, nil
}

// Get retrieves the content of a blob and verifies its checksum
func (s *Store) Get(ctx context.Context, checksum string) ([]byte, error) {
	if err := validChecksum(checksum); err != nil {
		return nil, err
	}
	compressed, err := storage.ReadAll(ctx, s.store, model.GetBlobKey(checksum))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			return nil, status.ErrNotFound.WrapMessage("checksum %s", checksum)
		}
		return nil, err
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, status.ErrCodec.Wrap(err)
	}
	if actual := model.Checksum(data); actual != checksum {
		return nil, status.ErrChecksumMismatch.WrapMessage("expected %s, got %s", checksum, actual)
	}
	return data, nil
}

// CopyTo writes the content of a blob to some writer
func (s *Store) CopyTo(ctx context.Context, checksum string, w io.Writer) (int64, error) {
	data, err := s.Get(ctx, checksum)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, bytes.NewReader(data))
}

// Delete removes a blob
func (s *Store) Delete(ctx context.Context, checksum string) error {
	if err := validChecksum(checksum); err != nil {
		return err
	}
	err := s.store.Delete(ctx, model.GetBlobKey(checksum))
	if errors.Is(err, storagestatus.ErrNotExists) {
		return status.ErrNotFound.WrapMessage("blob %s", checksum)
	}
	return err
}

// Checksums lists the checksums of all stored blobs
func (s *Store) Checksums(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	checksums := make([]string, 0, len(keys))
	for _, key := range keys {
		checksum := strings.Replace(key, "/", "", 1)
		if model.IsChecksum(checksum) {
			checksums = append(checksums, checksum)
		}
	}
	return checksums, nil
}
