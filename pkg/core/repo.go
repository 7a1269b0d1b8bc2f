/*
 * Copyright © 2019 One Concern
 *
 */

package core

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/ccsi/dmflite/pkg/blob"
	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/index"
	"github.com/ccsi/dmflite/pkg/metrics"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/storage"
	"github.com/ccsi/dmflite/pkg/storage/localfs"
	storagestatus "github.com/ccsi/dmflite/pkg/storage/status"
	"github.com/ccsi/dmflite/pkg/wal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Repo is a local versioned object store.
//
// A Repo is safe for concurrent use: mutations are serialized, queries may run concurrently
// with one another.
type Repo struct {
	mu sync.RWMutex

	root       string
	user       string
	author     model.Contributor
	descriptor model.RepoDescriptor

	hostFs afero.Fs      // file system hosting the repository, downloads and imports
	fs     afero.Fs      // working tree, rooted at the repository root
	meta   storage.Store // repository descriptor and batch journals
	wal    *wal.WAL
	blobs  *blob.Store
	index  *index.Index
	closed bool

	l         *zap.Logger
	registry  prometheus.Registerer
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time
	cacheSize int
}

// Open a repository at root for some user, initializing it if needed.
//
// Opening is idempotent. The user namespace folder and the system folders are created when missing.
func Open(ctx context.Context, root, user string, opts ...Option) (*Repo, error) {
	r := defaultRepo()
	for _, apply := range opts {
		apply(r)
	}
	if err := model.ValidateUser(user); err != nil {
		return nil, status.ErrRepoInit.Wrap(err)
	}
	r.root = root
	r.user = user
	r.author = model.NewContributor(user)
	r.l = r.l.With(zap.String("repo", root), zap.String("user", user))

	if err := r.hostFs.MkdirAll(filepath.Join(root, model.MetaDir), 0755); err != nil {
		return nil, status.ErrRepoInit.WrapWithLog(r.l, err)
	}
	r.fs = afero.NewBasePathFs(r.hostFs, root)

	if err := r.openBackend(ctx); err != nil {
		r.closeBackend()
		return nil, err
	}
	if err := r.ensureNamespace(ctx); err != nil {
		r.closeBackend()
		return nil, err
	}
	r.l.Info("opened repository", zap.String("history", r.wal.Last()))
	return r, nil
}

func (r *Repo) subStore(dir string) (storage.Store, error) {
	return localfs.NewAtomic(afero.NewBasePathFs(r.fs, path.Join("/", model.MetaDir, dir)))
}

func (r *Repo) openBackend(ctx context.Context) error {
	var err error
	if r.meta, err = r.subStore(""); err != nil {
		return status.ErrRepoInit.WrapWithLog(r.l, err)
	}
	if err = r.ensureDescriptor(ctx); err != nil {
		return err
	}
	if err = r.setupMetrics(); err != nil {
		return status.ErrRepoInit.WrapWithLog(r.l, err)
	}

	historyStore, err := r.subStore(model.GetHistoryDir())
	if err != nil {
		return status.ErrRepoInit.WrapWithLog(r.l, err)
	}
	if r.wal, err = wal.New(ctx, historyStore, wal.Logger(r.l.Named("wal")), wal.Clock(r.now)); err != nil {
		return status.ErrRepoInit.Wrap(err)
	}

	blobStore, err := r.subStore(model.GetBlobsDir())
	if err != nil {
		return status.ErrRepoInit.WrapWithLog(r.l, err)
	}
	if r.blobs, err = blob.New(blobStore, blob.Logger(r.l.Named("blob"))); err != nil {
		return status.ErrRepoInit.Wrap(err)
	}

	// badger needs a real directory: other file systems get an index in memory
	var indexDir string
	if _, isOS := r.hostFs.(*afero.OsFs); isOS {
		indexDir = filepath.Join(r.root, model.MetaDir, model.GetIndexDir())
	}
	if r.index, err = index.Open(indexDir, index.Logger(r.l.Named("index")), index.CacheSize(r.cacheSize)); err != nil {
		return status.ErrRepoInit.Wrap(err)
	}
	replayed, err := r.index.Replay(ctx, r.wal)
	if err != nil {
		return status.ErrRepoInit.Wrap(err)
	}
	r.metrics.Replayed(replayed)
	return nil
}

func (r *Repo) ensureDescriptor(ctx context.Context) error {
	key := model.GetPathToRepoDescriptor()
	b, err := storage.ReadAll(ctx, r.meta, key)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(b, &r.descriptor); err != nil {
			return status.ErrRepoInit.WrapWithLog(r.l, err, zap.String("descriptor", key))
		}
		if r.descriptor.Version > model.CurrentRepoVersion {
			return status.ErrRepoInit.WrapMessage("unsupported repository version %d", r.descriptor.Version)
		}
		return nil
	case !errors.Is(err, storagestatus.ErrNotExists):
		return status.ErrRepoInit.WrapWithLog(r.l, err)
	}

	r.descriptor = model.RepoDescriptor{
		Name:        filepath.Base(r.root),
		User:        r.user,
		Timestamp:   r.now().UTC(),
		Contributor: r.author,
		Version:     model.CurrentRepoVersion,
	}
	if b, err = yaml.Marshal(r.descriptor); err != nil {
		return status.ErrRepoInit.Wrap(err)
	}
	err = r.meta.Put(ctx, key, bytes.NewReader(b), storage.NoOverWrite)
	if err != nil && !errors.Is(err, storagestatus.ErrExists) {
		return status.ErrRepoInit.WrapWithLog(r.l, err)
	}
	r.l.Info("initialized repository", zap.String("name", r.descriptor.Name))
	return nil
}

// ensureNamespace creates the user folder and the system folders below it
func (r *Repo) ensureNamespace(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userPath := model.UserPath(r.user)
	folders := []model.SystemFolder{{Name: r.user}}
	paths := []string{userPath}
	for _, f := range model.SystemFolders {
		folders = append(folders, f)
		paths = append(paths, path.Join(userPath, f.Name))
	}
	for i, pth := range paths {
		if _, err := r.index.IDByPath(pth); err == nil {
			continue
		}
		if _, err := r.createFolder(ctx, pth, folders[i].Name, folders[i].Description, model.DefaultCreator, true); err != nil {
			return status.ErrRepoInit.Wrap(err)
		}
	}
	return nil
}

func (r *Repo) closeBackend() {
	if r.index != nil {
		if err := r.index.Close(); err != nil {
			r.l.Warn("closing index", zap.Error(err))
		}
	}
	if r.blobs != nil {
		if err := r.blobs.Close(); err != nil {
			r.l.Warn("closing blob store", zap.Error(err))
		}
	}
}

// Close the repository. Operations on a closed repository fail with status.ErrClosed.
func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.index != nil {
		err = r.index.Close()
		r.index = nil
	}
	if r.blobs != nil {
		if e := r.blobs.Close(); e != nil && err == nil {
			err = e
		}
		r.blobs = nil
	}
	return err
}

// lock takes the write lock on an open repository
func (r *Repo) lock() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return status.ErrClosed
	}
	return nil
}

// rlock takes the read lock on an open repository
func (r *Repo) rlock() error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return status.ErrClosed
	}
	return nil
}

// Root of the repository on its file system
func (r *Repo) Root() string {
	return r.root
}

// User owning the repository handle
func (r *Repo) User() string {
	return r.user
}

// Descriptor of the repository
func (r *Repo) Descriptor() model.RepoDescriptor {
	return r.descriptor
}

// RebuildIndex drops the index and replays the whole history onto it
func (r *Repo) RebuildIndex(ctx context.Context) (n int, err error) {
	defer r.observe("rebuild_index", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return 0, err
	}
	defer r.mu.Unlock()

	n, err = r.index.Rebuild(ctx, r.wal)
	r.metrics.Replayed(n)
	return n, err
}

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Repo) observe(operation string, start time.Time, err *error) {
	r.metrics.Observe(operation, start, *err)
}

// commit appends an entry to the history, updates the working tree and indexes the entry.
//
// The working tree is updated by apply (which may be nil) only once the entry is recorded,
// so that a failed write leaves the tree untouched.
// Must be called with the write lock held.
func (r *Repo) commit(ctx context.Context, id string, action model.Action, pth string, record model.MetadataRecord, apply func() error) (model.HistoryEntry, error) {
	he := model.HistoryEntry{
		ID:     id,
		Action: action,
		Path:   pth,
		Record: record,
	}
	msg, err := he.Message()
	if err != nil {
		return model.HistoryEntry{}, status.ErrMalformed.Wrap(err)
	}
	text := msg.String()
	parsed, err := model.ParseMessage(text)
	if err != nil {
		return model.HistoryEntry{}, status.ErrMalformed.Wrap(err)
	}
	if parsed.ID != msg.ID || parsed.Action != msg.Action || parsed.Path != msg.Path || !bytes.Equal(parsed.Record, msg.Record) {
		return model.HistoryEntry{}, status.ErrMalformed.WrapMessage("history message for %q does not read back", pth)
	}

	e, err := r.wal.Add(ctx, r.author, text)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	var applyErr error
	if apply != nil {
		if applyErr = apply(); applyErr != nil {
			// the entry is recorded: the working tree is reported as modified by Verify
			r.l.Error("updating working tree", zap.String("token", e.Token), zap.String("path", pth), zap.Error(applyErr))
		}
	}
	if err = r.index.Apply(*e); err != nil {
		// the history is committed: the index catches up when the repository is opened again
		return model.HistoryEntry{}, err
	}
	if applyErr != nil {
		return model.HistoryEntry{}, applyErr
	}
	r.metrics.Committed(string(action))
	r.l.Debug("committed", zap.String("token", e.Token), zap.String("id", id), zap.String("action", string(action)), zap.String("path", pth))

	he.Token = e.Token
	he.Timestamp = e.Timestamp
	he.Author = e.Author
	return he, nil
}

func (r *Repo) exists(pth string) (bool, error) {
	return afero.Exists(r.fs, pth)
}

func (r *Repo) isDir(pth string) (bool, error) {
	fi, err := r.fs.Stat(pth)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return fi.IsDir(), nil
}
