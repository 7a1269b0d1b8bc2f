package blob

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ccsi/dmflite/internal/rand"
	"github.com/ccsi/dmflite/pkg/blob/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/storage"
	"github.com/ccsi/dmflite/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBlobs(t testing.TB) (*Store, storage.Store) {
	backing, err := localfs.NewAtomic(afero.NewMemMapFs())
	require.NoError(t, err)
	s, err := New(backing)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, backing
}

func TestPutGet(t *testing.T) {
	s, backing := setupBlobs(t)
	ctx := context.Background()

	data := []byte(strings.Repeat("compressible content ", 1000))
	checksum, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, model.Checksum(data), checksum)

	has, err := s.Has(ctx, checksum)
	require.NoError(t, err)
	assert.True(t, has)

	stored, err := storage.ReadAll(ctx, backing, model.GetBlobKey(checksum))
	require.NoError(t, err)
	assert.Less(t, len(stored), len(data), "blobs are compressed")

	got, err := s.Get(ctx, checksum)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	var buf bytes.Buffer
	n, err := s.CopyTo(ctx, checksum, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, buf.Bytes())
}

func TestPutIdempotent(t *testing.T) {
	s, _ := setupBlobs(t)
	ctx := context.Background()
	data := rand.Bytes(4096)

	c1, err := s.Put(ctx, data)
	require.NoError(t, err)
	c2, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	empty, err := s.Put(ctx, nil)
	require.NoError(t, err)
	got, err := s.Get(ctx, empty)
	require.NoError(t, err)
	assert.Empty(t, got)

	checksums, err := s.Checksums(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c1, empty}, checksums)
}

func TestGetErrors(t *testing.T) {
	s, backing := setupBlobs(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.True(t, errors.Is(err, status.ErrInvalidChecksum))

	missing := model.Checksum([]byte("missing"))
	_, err = s.Get(ctx, missing)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	// a blob stored under the wrong key is detected
	other, err := s.Put(ctx, []byte("other"))
	require.NoError(t, err)
	compressed, err := storage.ReadAll(ctx, backing, model.GetBlobKey(other))
	require.NoError(t, err)
	require.NoError(t, backing.Put(ctx, model.GetBlobKey(missing), bytes.NewReader(compressed), storage.OverWrite))
	_, err = s.Get(ctx, missing)
	assert.True(t, errors.Is(err, status.ErrChecksumMismatch))

	// garbage is not valid zstd
	require.NoError(t, backing.Put(ctx, model.GetBlobKey(missing), strings.NewReader("garbage"), storage.OverWrite))
	_, err = s.Get(ctx, missing)
	assert.True(t, errors.Is(err, status.ErrCodec))
}

func TestDeleteAndList(t *testing.T) {
	s, _ := setupBlobs(t)
	ctx := context.Background()

	first, err := s.Put(ctx, []byte("first"))
	require.NoError(t, err)
	second, err := s.Put(ctx, []byte("second"))
	require.NoError(t, err)

	checksums, err := s.Checksums(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, checksums)

	require.NoError(t, s.Delete(ctx, first))
	checksums, err = s.Checksums(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second}, checksums)

	assert.True(t, errors.Is(s.Delete(ctx, first), status.ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "nope"), status.ErrInvalidChecksum))
}
