package core

import (
	"context"
	"testing"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func document(pth, content string) BatchUpload {
	return BatchUpload{Document: &DocumentRequest{
		Bytes:        []byte(content),
		Path:         pth,
		OriginalName: model.BaseName(pth),
		Mimetype:     "text/plain",
	}}
}

func TestUploadBatch(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	b, err := r.UploadBatch(ctx, []BatchUpload{
		{Folder: &FolderRequest{Path: "/u1/run", Description: "a run"}},
		document("/u1/run/input.txt", "in"),
		document("/u1/run/output.txt", "out"),
	})
	require.NoError(t, err)
	assert.True(t, b.Complete)
	require.Len(t, b.Refs(), 3)

	folder, err := r.GetDMFID(ctx, "/u1/run")
	require.NoError(t, err)
	assert.Equal(t, folder.String(), b.Refs()[0])

	output, err := r.GetDMFID(ctx, "/u1/run/output.txt")
	require.NoError(t, err)
	assert.Equal(t, output.String(), b.Refs()[2])

	batches, err := r.Batches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, b.ID, batches[0].ID)
	assert.True(t, batches[0].Complete)
	assert.Equal(t, testUser, batches[0].Author.Name)
}

func TestReconcileBatch(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	b, err := r.UploadBatch(ctx, []BatchUpload{
		{Folder: &FolderRequest{Path: "/u1/ok"}},
		document("/u1/ok/a.txt", "a"),
		document("/u1/missing/b.txt", "b"),
		document("/u1/ok/c.txt", "c"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrBatchIncomplete))
	assert.True(t, errors.Is(err, status.ErrParentNotFound))
	require.NotNil(t, b)
	assert.False(t, b.Complete)
	assert.Equal(t, []ItemState{ItemCommitted, ItemCommitted, ItemFailed, ItemPending}, []ItemState{
		b.Items[0].State, b.Items[1].State, b.Items[2].State, b.Items[3].State,
	})
	assert.NotEmpty(t, b.Items[2].Error)
	assert.Len(t, b.Refs(), 2)

	_, err = r.GetDMFID(ctx, "/u1/ok/c.txt")
	assert.True(t, errors.Is(err, status.ErrNotFound))

	// still failing
	reconciled, err := r.Reconcile(ctx)
	require.Error(t, err)
	require.Len(t, reconciled, 1)
	assert.False(t, reconciled[0].Complete)

	mustFolder(t, r, "/u1/missing")
	entries := logLen(t, r)

	reconciled, err = r.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, reconciled, 1)
	assert.Equal(t, b.ID, reconciled[0].ID)
	assert.True(t, reconciled[0].Complete)
	assert.Len(t, reconciled[0].Refs(), 4)
	assert.Equal(t, entries+2, logLen(t, r))

	data, err := r.ReadFile(ctx, "/u1/missing/b.txt", model.InitialVersion)
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	reconciled, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, reconciled)
}

func TestReconcileDetectsCommittedItems(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	ref := mustDocument(t, r, "/u1/Simulation/a.txt", "a", nil)
	folderID := mustFolder(t, r, "/u1/Simulation/out")

	// a journal which was not updated after its objects were committed
	b := &Batch{
		ID:     model.NewID(),
		Author: model.NewContributor(testUser),
		Items: []BatchItem{
			{Path: "/u1/Simulation/out", Folder: true, State: ItemPending},
			{Path: "/u1/Simulation/a.txt", Checksum: model.Checksum([]byte("a")), State: ItemPending},
		},
	}
	require.NoError(t, r.saveBatch(ctx, b))
	entries := logLen(t, r)

	reconciled, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, reconciled, 1)
	assert.True(t, reconciled[0].Complete)
	assert.Equal(t, []string{model.NewRef(folderID, model.Version{}).String(), ref.String()}, reconciled[0].Refs())
	assert.Equal(t, entries, logLen(t, r))
}

func TestUploadBatchErrors(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := r.UploadBatch(context.Background(), []BatchUpload{{}})
	assert.True(t, errors.Is(err, status.ErrInvalidPath))

	batches, err := r.Batches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}
