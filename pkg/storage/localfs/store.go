// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ccsi/dmflite/pkg/storage"
	"github.com/ccsi/dmflite/pkg/storage/status"
	"github.com/spf13/afero"
)

// New creates a new local file system backed storage model
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".dmf", "objects"))
	}
	return &localFS{
		fs: fs,
	}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("key %s", key)
	}
	return l.fs.Open(key)
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if exclusive {
		flag |= os.O_EXCL
	}
	target, err := l.fs.OpenFile(key, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists.WrapMessage("key %s", key)
		}
		return fmt.Errorf("create record for %q: %v", key, err)
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return fmt.Errorf("write record for %q: %v", key, err)
	}
	if err = target.Sync(); err != nil {
		_ = target.Close()
		return fmt.Errorf("sync record for %q: %v", key, err)
	}
	return target.Close()
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotExists.WrapMessage("key %s", key)
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	return l.walk(ctx, ".")
}

// KeysPrefix lists keys under a directory-like prefix
func (l *localFS) KeysPrefix(ctx context.Context, prefix string) ([]string, error) {
	root := strings.TrimSuffix(prefix, "/")
	if root == "" {
		root = "."
	}
	if _, err := l.fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return l.walk(ctx, root)
}

func (l *localFS) walk(ctx context.Context, root string) ([]string, error) {
	var res []string
	e := afero.Walk(l.fs, root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}
		res = append(res, filepath.ToSlash(pth))
		return nil
	})
	if e != nil {
		return nil, e
	}
	return res, nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	return describe(localfs, l.fs)
}

func describe(name string, fs afero.Fs) string {
	switch fs := fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return name
		}
		return name + "@" + pp
	default:
		return name
	}
}

/* thread-safe local storage implementation.
 * use a decorator pattern to implement atomic Put()s via atomicity of afero.Fs.Rename()
 * for those filesystems where Rename() is thread-safe:  files are placed in a staging area,
 * then Rename()d into place.
 */

/* staging area key prefix and helper functions */
const (
	nestedPutStageName = ".put-stage"
)

func maybeInvalidKey(key string) error {
	pathComponents := strings.Split(strings.TrimLeft(filepath.ToSlash(key), "/"), "/")
	if len(pathComponents) == 0 {
		return nil
	}
	if pathComponents[0] == nestedPutStageName {
		return status.ErrInvalidResource.WrapMessage("key '%v' conflicts with put staging area name '%v'", key, nestedPutStageName)
	}
	return nil
}

func filterInvalidKeys(ks []string) []string {
	/* https://github.com/golang/go/wiki/SliceTricks#filtering-without-allocating */
	ksFiltered := ks[:0]
	for _, key := range ks {
		if err := maybeInvalidKey(key); err == nil {
			ksFiltered = append(ksFiltered, key)
		}
	}
	for i := len(ksFiltered); i < len(ks); i++ {
		ks[i] = ""
	}
	return ksFiltered
}

// NewAtomic builds a local store with atomic Put operations
func NewAtomic(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".dmf", "objects"))
	}
	/* the staging area exists within the afero.Fs itself */
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, fmt.Errorf("ensuring put staging directory for %q: %v", nestedPutStageName, err)
	}
	return &localFSAtomic{
		storeImpl: localFS{fs: fs},
	}, nil
}

type localFSAtomic struct {
	storeImpl localFS
}

func (l *localFSAtomic) Has(ctx context.Context, key string) (bool, error) {
	if err := maybeInvalidKey(key); err != nil {
		return false, err
	}
	return l.storeImpl.Has(ctx, key)
}

func (l *localFSAtomic) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := maybeInvalidKey(key); err != nil {
		return nil, err
	}
	return l.storeImpl.Get(ctx, key)
}

func (l *localFSAtomic) Delete(ctx context.Context, key string) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	return l.storeImpl.Delete(ctx, key)
}

func (l *localFSAtomic) Keys(ctx context.Context) ([]string, error) {
	ks, err := l.storeImpl.Keys(ctx)
	if err != nil {
		return ks, err
	}
	return filterInvalidKeys(ks), nil
}

func (l *localFSAtomic) KeysPrefix(ctx context.Context, prefix string) ([]string, error) {
	ks, err := l.storeImpl.KeysPrefix(ctx, prefix)
	if err != nil {
		return ks, err
	}
	return filterInvalidKeys(ks), nil
}

/* the Put() implementation is the only part of the Store interface implemented
 * outside of the functional wrap design pattern
 */
func (l *localFSAtomic) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if exclusive {
		has, err := l.storeImpl.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("key %s", key)
		}
	}
	putStageKey := path.Join(nestedPutStageName, key)
	if err := l.storeImpl.Put(ctx, putStageKey, source, false); err != nil {
		return err
	}
	/* Rename() doesn't create directories automatically */
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.storeImpl.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	return l.storeImpl.fs.Rename(putStageKey, key)
}

func (l *localFSAtomic) String() string {
	const localfs = "localfs-atomic"
	return describe(localfs, l.storeImpl.fs)
}
