package core

import (
	"context"
	"testing"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpenCreatesNamespace(t *testing.T) {
	r, fs := newTestRepo(t, Logger(zaptest.NewLogger(t)))
	ctx := context.Background()

	assert.Equal(t, "repo", r.Descriptor().Name)
	assert.Equal(t, testUser, r.Descriptor().User)
	assert.Equal(t, model.CurrentRepoVersion, r.Descriptor().Version)

	for _, pth := range []string{"/u1", "/u1/Simulation", "/u1/Sorbentfit"} {
		meta, err := r.GetLatestMeta(ctx, pth)
		require.NoError(t, err, pth)
		assert.True(t, meta.Folder)
		assert.Equal(t, model.DefaultCreator, meta.Creator)

		has, err := afero.Exists(fs, testRoot+pth+"/"+model.SentinelFile)
		require.NoError(t, err)
		assert.True(t, has, "sentinel in %s", pth)
	}
	meta, err := r.GetLatestMeta(ctx, "/u1/Simulation")
	require.NoError(t, err)
	assert.Equal(t, "Folder for storing simulation files.", meta.Description)

	assert.Equal(t, 3, logLen(t, r))
}

func TestOpenIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := openTestRepo(t, fs)
	ctx := context.Background()

	ref := mustDocument(t, r, "/u1/Simulation/run.txt", "abc", nil)
	require.NoError(t, r.Close())

	reopened := openTestRepo(t, fs)
	assert.Equal(t, 4, logLen(t, reopened))

	got, err := reopened.GetDMFID(ctx, "/u1/Simulation/run.txt")
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	// another user shares the repository
	other, err := Open(ctx, testRoot, "u2", WithFs(fs))
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	assert.Equal(t, testUser, other.Descriptor().User, "the descriptor is written once")

	paths, err := other.Paths(ctx, "/u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"/u2", "/u2/Simulation", "/u2/Sorbentfit"}, paths)
}

func TestOpenOnDisk(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	r, err := Open(ctx, root, testUser)
	require.NoError(t, err)
	ref := mustDocument(t, r, "/u1/Sorbentfit/fit.json", `{"a": 1}`, nil)
	require.NoError(t, r.Close())

	r, err = Open(ctx, root, testUser)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	meta, err := r.GetMetaByRef(ctx, ref.ID, ref.Version)
	require.NoError(t, err)
	assert.Equal(t, model.Checksum([]byte(`{"a": 1}`)), meta.Checksum)

	data, err := r.ReadFile(ctx, "/u1/Sorbentfit/fit.json", model.InitialVersion)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, string(data))
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, testRoot, "", WithFs(afero.NewMemMapFs()))
	assert.True(t, errors.Is(err, status.ErrRepoInit))

	_, err = Open(ctx, testRoot, "u/1", WithFs(afero.NewMemMapFs()))
	assert.True(t, errors.Is(err, status.ErrRepoInit))

	_, err = Open(ctx, testRoot, testUser, WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))
	assert.True(t, errors.Is(err, status.ErrRepoInit))
}

func TestRebuildIndex(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	mustFolder(t, r, "/u1/proj")
	first := mustDocument(t, r, "/u1/proj/a.txt", "abc", nil)
	mustDocument(t, r, "/u1/proj/a.txt", "xyz", v(2, 0))
	_, err := r.EditDocumentMetadata(ctx, "/u1/proj/a.txt", DocumentEdit{Description: "edited", Major: 2})
	require.NoError(t, err)
	require.NoError(t, r.EditFolderMeta(ctx, "/u1/proj", "project", ""))

	type snapshot struct {
		paths    []string
		versions []string
		ref      model.CompositeRef
		byCheck  string
		history  int
	}
	take := func() snapshot {
		paths, err := r.Paths(ctx, "")
		require.NoError(t, err)
		versions, err := r.GetVersionList(ctx, "/u1/project/a.txt")
		require.NoError(t, err)
		ref, err := r.GetDMFID(ctx, "/u1/project/a.txt")
		require.NoError(t, err)
		byCheck, err := r.GetPathByChecksum(ctx, model.Checksum([]byte("abc")))
		require.NoError(t, err)
		history, err := r.History(ctx, "/u1/project/a.txt")
		require.NoError(t, err)
		return snapshot{paths: paths, versions: versions, ref: ref, byCheck: byCheck, history: len(history)}
	}

	before := take()
	assert.Equal(t, first.ID, before.ref.ID)

	n, err := r.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, logLen(t, r), n)
	assert.Equal(t, before, take())
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	r, _ := newTestRepo(t, WithMetrics(registry))

	mustFolder(t, r, "/u1/proj")
	mustDocument(t, r, "/u1/proj/a.txt", "abc", nil)

	families, err := registry.Gather()
	require.NoError(t, err)
	counts := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counts[family.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 5.0, counts["dmflite_history_entries_total"])
	assert.Equal(t, 2.0, counts["dmflite_operations_total"])
	assert.Equal(t, 3.0, counts["dmflite_blob_bytes_total"])
}
