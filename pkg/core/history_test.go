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

func TestDates(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	const pth = "/u1/Simulation/dates.txt"

	mustDocument(t, r, pth, "1", nil)
	mustDocument(t, r, pth, "2", v(2, 0))

	created, err := r.GetCreationDate(ctx, pth)
	require.NoError(t, err)
	modified, err := r.GetLastModifiedDate(ctx, pth)
	require.NoError(t, err)
	assert.True(t, created.Before(modified))

	first, err := r.GetCreationDateByVersion(ctx, pth, model.InitialVersion)
	require.NoError(t, err)
	assert.Equal(t, created, first)

	second, err := r.GetCreationDateByVersion(ctx, pth, model.Version{Major: 2})
	require.NoError(t, err)
	assert.Equal(t, modified, second)

	_, err = r.GetCreationDateByVersion(ctx, pth, model.Version{Major: 3})
	assert.True(t, errors.Is(err, status.ErrNotFound))
	_, err = r.GetCreationDate(ctx, "/u1/Simulation/none.txt")
	assert.True(t, errors.Is(err, status.ErrNotFound))

	history, err := r.History(ctx, pth)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ActionNewVersion, history[0].Action)
	assert.Equal(t, model.ActionInitialized, history[1].Action)
	assert.Equal(t, testUser, history[0].Author.Name)
}

func TestLog(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	mustFolder(t, r, "/u1/proj")
	mustDocument(t, r, "/u1/proj/a.txt", "a", nil)

	entries, err := r.Log(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Token < entries[i].Token, "log is in commit order")
	}
	last := entries[len(entries)-1]
	assert.Equal(t, "/u1/proj/a.txt", last.Path)
	assert.Equal(t, model.InitialVersion, last.Record.Version)
	assert.Equal(t, "/u1", entries[0].Path)
}

func TestPaths(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	mustFolder(t, r, "/u1/proj")
	mustDocument(t, r, "/u1/proj/a.txt", "a", nil)
	mustDocument(t, r, "/u1/proj.txt", "b", nil)

	paths, err := r.Paths(ctx, "/u1/proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"/u1/proj", "/u1/proj/a.txt"}, paths)

	all, err := r.Paths(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/u1",
		"/u1/Simulation",
		"/u1/Sorbentfit",
		"/u1/proj",
		"/u1/proj.txt",
		"/u1/proj/a.txt",
	}, all)
}

func TestDependencies(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	ghost := model.NewRef(model.NewID(), model.InitialVersion)
	a := mustDocument(t, r, "/u1/Simulation/a.txt", "a", nil)
	b := mustDocument(t, r, "/u1/Simulation/b.txt", "b", nil, a)
	c := mustDocument(t, r, "/u1/Simulation/c.txt", "c", nil, b, ghost)

	edges, err := r.Dependencies(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{From: c, To: b},
		{From: c, To: ghost, Dangling: true},
		{From: b, To: a},
	}, edges)

	edges, err = r.Dependencies(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// a version depending on itself
	c11 := model.NewRef(c.ID, model.Version{Major: 1, Minor: 1})
	_, err = r.EditDocumentMetadata(ctx, "/u1/Simulation/c.txt", DocumentEdit{
		Major:        1,
		MinorBase:    0,
		Dependencies: []model.CompositeRef{c11, a},
	})
	require.NoError(t, err)

	edges, err = r.Dependencies(ctx, c11)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{From: c11, To: c11},
		{From: c11, To: a},
	}, edges)

	_, err = r.Dependencies(ctx, ghost)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}
