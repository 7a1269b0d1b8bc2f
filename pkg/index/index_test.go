package index

import (
	"context"
	"testing"
	"time"

	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/index/status"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/storage/localfs"
	"github.com/ccsi/dmflite/pkg/wal"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      testing.TB
	wal    *wal.WAL
	index  *Index
	author model.Contributor
}

func setupIndex(t testing.TB) *fixture {
	store, err := localfs.NewAtomic(afero.NewMemMapFs())
	require.NoError(t, err)
	w, err := wal.New(context.Background(), store)
	require.NoError(t, err)
	ix, err := Open("", CacheSize(16))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return &fixture{t: t, wal: w, index: ix, author: model.NewContributor("u1")}
}

// commit appends an entry to the log and indexes it
func (f *fixture) commit(id string, action model.Action, pth string, record model.MetadataRecord) wal.Entry {
	he := model.HistoryEntry{ID: id, Action: action, Path: pth, Record: record}
	msg, err := he.Message()
	require.NoError(f.t, err)
	return f.commitRaw(msg.String())
}

func (f *fixture) commitRaw(msg string) wal.Entry {
	e, err := f.wal.Add(context.Background(), f.author, msg)
	require.NoError(f.t, err)
	require.NoError(f.t, f.index.Apply(*e))
	return *e
}

func document(name, checksum string, v model.Version) model.MetadataRecord {
	return model.MetadataRecord{
		DisplayName: name,
		Creator:     "u1",
		Checksum:    checksum,
		Version:     v,
	}
}

func TestIndexLookups(t *testing.T) {
	f := setupIndex(t)
	folderID, docID := model.NewID(), model.NewID()
	abc, xyz := model.Checksum([]byte("abc")), model.Checksum([]byte("xyz"))

	f.commit(folderID, model.ActionInitialized, "/u1/Sim", model.NewFolderRecord("Sim", "", "u1"))
	first := f.commit(docID, model.ActionInitialized, "/u1/Sim/model.txt", document("model.txt", abc, model.Version{Major: 1}))
	f.commit(docID, model.ActionNewVersion, "/u1/Sim/model.txt", document("model.txt", xyz, model.Version{Major: 2}))
	last := f.commit(docID, model.ActionMetadataChanged, "/u1/Sim/model.txt", document("model.txt", xyz, model.Version{Major: 2, Minor: 1}))

	id, err := f.index.IDByPath("/u1/Sim/model.txt")
	require.NoError(t, err)
	assert.Equal(t, docID, id)

	pth, err := f.index.PathByID(folderID)
	require.NoError(t, err)
	assert.Equal(t, "/u1/Sim", pth)

	history, err := f.index.History(docID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, first.Token, history[0].Token)
	assert.Equal(t, last.Token, history[2].Token)

	latest, err := f.index.Latest(docID)
	require.NoError(t, err)
	assert.Equal(t, model.Version{Major: 2, Minor: 1}, latest.Record.Version)

	oldest, err := f.index.First(docID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionInitialized, oldest.Action)

	e, err := f.index.ByVersion(docID, model.Version{Major: 1})
	require.NoError(t, err)
	assert.Equal(t, abc, e.Record.Checksum)

	// no prefix match on version numbers
	_, err = f.index.ByVersion(docID, model.Version{Major: 1, Minor: 1})
	assert.True(t, errors.Is(err, status.ErrNotFound))

	e, err = f.index.ByChecksum(xyz)
	require.NoError(t, err)
	assert.Equal(t, last.Token, e.Token, "the most recent entry carrying a checksum wins")

	_, err = f.index.ByChecksum(model.Checksum([]byte("never stored")))
	assert.True(t, errors.Is(err, status.ErrNotFound))

	checksums, err := f.index.Checksums()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{abc, xyz}, checksums)

	paths, err := f.index.Paths("/u1/Sim")
	require.NoError(t, err)
	assert.Equal(t, []string{"/u1/Sim", "/u1/Sim/model.txt"}, paths)

	has, err := f.index.Has(model.NewID())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestIndexFolderMove(t *testing.T) {
	f := setupIndex(t)
	folderID, subID, docID := model.NewID(), model.NewID(), model.NewID()

	f.commit(folderID, model.ActionInitialized, "/u1/Sim", model.NewFolderRecord("Sim", "", "u1"))
	f.commit(subID, model.ActionInitialized, "/u1/Sim/run", model.NewFolderRecord("run", "", "u1"))
	f.commit(docID, model.ActionInitialized, "/u1/Sim/run/out.csv", document("out.csv", model.Checksum(nil), model.InitialVersion))
	// a sibling sharing a name prefix must not move
	siblingID := model.NewID()
	f.commit(siblingID, model.ActionInitialized, "/u1/Simple", model.NewFolderRecord("Simple", "", "u1"))

	f.commit(folderID, model.ActionMetadataChanged, "/u1/Models", model.NewFolderRecord("Models", "renamed", "u1"))

	for pth, want := range map[string]string{
		"/u1/Models":             folderID,
		"/u1/Models/run":         subID,
		"/u1/Models/run/out.csv": docID,
		"/u1/Simple":             siblingID,
	} {
		id, err := f.index.IDByPath(pth)
		require.NoError(t, err, pth)
		assert.Equal(t, want, id, pth)
	}
	_, err := f.index.IDByPath("/u1/Sim/run/out.csv")
	assert.True(t, errors.Is(err, status.ErrNotFound))

	pth, err := f.index.PathByID(docID)
	require.NoError(t, err)
	assert.Equal(t, "/u1/Models/run/out.csv", pth)

	// history keeps the original action lines
	first, err := f.index.First(docID)
	require.NoError(t, err)
	assert.Equal(t, "/u1/Sim/run/out.csv", first.Path)
}

func TestIndexMalformedEntries(t *testing.T) {
	f := setupIndex(t)
	id := model.NewID()

	f.commitRaw("not a history message")
	f.commitRaw(id + "\nInitialized: /u1/broken.txt\n\n{\"checksum\": \"abc\"}")

	got, err := f.index.IDByPath("/u1/broken.txt")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = f.index.Latest(id)
	assert.True(t, errors.Is(err, status.ErrMalformed))

	last, err := f.index.Last()
	require.NoError(t, err)
	assert.Equal(t, f.wal.Last(), last)
}

func TestIndexReplay(t *testing.T) {
	f := setupIndex(t)
	ctx := context.Background()
	id := model.NewID()

	for i := uint64(1); i <= 5; i++ {
		f.commit(id, model.ActionNewVersion, "/u1/data.bin", document("data.bin", model.Checksum([]byte{byte(i)}), model.Version{Major: i}))
	}

	// applying twice is a no-op
	e, err := f.wal.Get(ctx, f.wal.Last())
	require.NoError(t, err)
	require.NoError(t, f.index.Apply(*e))

	tokens, err := f.index.Tokens(id)
	require.NoError(t, err)
	assert.Len(t, tokens, 5)

	applied, err := f.index.Replay(ctx, f.wal)
	require.NoError(t, err)
	assert.Zero(t, applied)

	applied, err = f.index.Rebuild(ctx, f.wal)
	require.NoError(t, err)
	assert.Equal(t, 5, applied)

	rebuilt, err := f.index.Tokens(id)
	require.NoError(t, err)
	assert.Equal(t, tokens, rebuilt)

	// a fresh index catches up with the log
	fresh, err := Open("")
	require.NoError(t, err)
	defer func() { _ = fresh.Close() }()
	applied, err = fresh.Replay(ctx, f.wal)
	require.NoError(t, err)
	assert.Equal(t, 5, applied)
	latest, err := fresh.Latest(id)
	require.NoError(t, err)
	assert.Equal(t, model.Version{Major: 5}, latest.Record.Version)
}

func TestIndexOnDisk(t *testing.T) {
	dir := t.TempDir()
	ix, err := Open(dir, CacheSize(1))
	require.NoError(t, err)

	e := wal.NewEntry("0ujsswThIGTUYm2K8FjOOfXtY1K", time.Now().UTC(), model.NewContributor("u1"),
		model.Message{ID: "obj", Action: model.ActionInitialized, Path: "/u1/f", Record: []byte(`{"display_name":"f","description":"","creator":"u1"}`)}.String())
	require.NoError(t, ix.Apply(*e))
	require.NoError(t, ix.Close())

	ix, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()
	latest, err := ix.Latest("obj")
	require.NoError(t, err)
	assert.True(t, latest.Record.Folder)
	assert.Equal(t, "/u1/f", latest.Path)
}
