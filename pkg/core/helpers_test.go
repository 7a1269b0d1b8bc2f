package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ccsi/dmflite/pkg/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testRoot = "/repo"
	testUser = "u1"
)

// tickingClock advances by a minute on every reading
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newTestRepo(t testing.TB, opts ...Option) (*Repo, afero.Fs) {
	fs := afero.NewMemMapFs()
	return openTestRepo(t, fs, opts...), fs
}

func openTestRepo(t testing.TB, fs afero.Fs, opts ...Option) *Repo {
	r, err := Open(context.Background(), testRoot, testUser, append([]Option{WithFs(fs), Clock(tickingClock())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func mustFolder(t testing.TB, r *Repo, pth string) string {
	id, err := r.CreateFolder(context.Background(), pth, model.BaseName(pth), "")
	require.NoError(t, err)
	return id
}

func mustDocument(t testing.TB, r *Repo, pth, content string, version *model.Version, deps ...model.CompositeRef) model.CompositeRef {
	ref, err := r.CreateVersionedDocument(context.Background(), DocumentRequest{
		Bytes:        []byte(content),
		Path:         pth,
		OriginalName: model.BaseName(pth),
		Description:  "test document",
		Mimetype:     "text/plain",
		Confidence:   "experimental",
		Version:      version,
		Dependencies: deps,
	})
	require.NoError(t, err)
	return ref
}

func logLen(t testing.TB, r *Repo) int {
	entries, err := r.Log(context.Background())
	require.NoError(t, err)
	return len(entries)
}

func v(major, minor uint64) *model.Version {
	return &model.Version{Major: major, Minor: minor}
}
