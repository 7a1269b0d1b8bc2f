package core

import (
	"context"
	"path"
	"testing"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobPath(checksum string) string {
	return path.Join(testRoot, model.MetaDir, model.GetBlobsDir(), model.GetBlobKey(checksum))
}

func TestVerify(t *testing.T) {
	r, fs := newTestRepo(t)
	ctx := context.Background()

	mustFolder(t, r, "/u1/proj")
	mustDocument(t, r, "/u1/proj/a.txt", "a", nil)
	mustDocument(t, r, "/u1/proj/b.txt", "b", nil)
	mustDocument(t, r, "/u1/proj/c.txt", "c", nil)
	mustDocument(t, r, "/u1/proj/c.txt", "c2", v(1, 1))

	report, err := r.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 4, report.Checked)

	sumA := model.Checksum([]byte("a"))
	sumB := model.Checksum([]byte("b"))

	require.NoError(t, afero.WriteFile(fs, testRoot+"/u1/proj/c.txt", []byte("edited"), 0644))
	require.NoError(t, afero.WriteFile(fs, blobPath(sumA), []byte("garbage"), 0600))
	require.NoError(t, fs.Remove(blobPath(sumB)))

	report, err = r.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{sumA}, report.Corrupt)
	assert.Equal(t, []string{sumB}, report.Missing)
	assert.Equal(t, []string{"/u1/proj/c.txt"}, report.Modified)

	_, err = r.ReadFile(ctx, "/u1/proj/a.txt", model.InitialVersion)
	assert.True(t, errors.Is(err, status.ErrChecksumMismatch))
	_, err = r.ReadFile(ctx, "/u1/proj/b.txt", model.InitialVersion)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	// the working tree edit does not affect the history
	data, err := r.ReadFile(ctx, "/u1/proj/c.txt", model.Version{Major: 1, Minor: 1})
	require.NoError(t, err)
	assert.Equal(t, "c2", string(data))
}
