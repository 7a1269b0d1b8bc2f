package core

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	blobstatus "github.com/ccsi/dmflite/pkg/blob/status"
	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// readVersion fetches the content of a version from the blob store.
//
// The working tree is not involved: historical content is read while other queries run.
func (r *Repo) readVersion(ctx context.Context, pth string, v model.Version) ([]byte, error) {
	e, err := r.entryByPath(pth, v)
	if err != nil {
		return nil, err
	}
	data, err := r.blobs.Get(ctx, e.Record.Checksum)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, blobstatus.ErrNotFound):
		return nil, status.ErrNotFound.WrapMessage("content of %s at version %s", pth, v)
	case errors.Is(err, blobstatus.ErrChecksumMismatch), errors.Is(err, blobstatus.ErrCodec):
		return nil, status.ErrChecksumMismatch.Wrap(err)
	default:
		return nil, err
	}
}

// ReadFile returns the content of a version of the document at a path
func (r *Repo) ReadFile(ctx context.Context, pth string, v model.Version) (data []byte, err error) {
	defer r.observe("read_file", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	return r.readVersion(ctx, pth, v)
}

// DownloadFile writes the content of a version of the document at a path to some writer
func (r *Repo) DownloadFile(ctx context.Context, pth string, v model.Version, dst io.Writer) (n int64, err error) {
	defer r.observe("download_file", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.rlock(); err != nil {
		return 0, err
	}
	defer r.mu.RUnlock()

	data, err := r.readVersion(ctx, pth, v)
	if err != nil {
		return 0, err
	}
	return io.Copy(dst, bytes.NewReader(data))
}

// DownloadFileTo writes the content of a version of the document at a path to a file on the host
func (r *Repo) DownloadFileTo(ctx context.Context, pth string, v model.Version, dstPath string) (err error) {
	defer r.observe("download_file", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.rlock(); err != nil {
		return err
	}
	defer r.mu.RUnlock()

	data, err := r.readVersion(ctx, pth, v)
	if err != nil {
		return err
	}
	if err = r.hostFs.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return afero.WriteFile(r.hostFs, dstPath, data, 0644)
}

// DownloadFolder copies the current content of a folder to a directory on the host.
//
// Only the current tree is copied: folders have no point-in-time snapshots.
func (r *Repo) DownloadFolder(ctx context.Context, srcPath, dstPath string) (err error) {
	defer r.observe("download_folder", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.rlock(); err != nil {
		return err
	}
	defer r.mu.RUnlock()

	src, err := cleanPath(srcPath)
	if err != nil {
		return err
	}
	isDir, err := r.isDir(src)
	if err != nil {
		return err
	}
	if !isDir {
		return status.ErrNotAFolder.WrapMessage("%s", src)
	}

	var copied int
	err = afero.Walk(r.fs, src, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if e := ctx.Err(); e != nil {
			return e
		}
		rel, err := filepath.Rel(src, pth)
		if err != nil {
			return err
		}
		target := filepath.Join(dstPath, rel)
		if info.IsDir() {
			return r.hostFs.MkdirAll(target, 0755)
		}
		if info.Name() == model.SentinelFile {
			return nil
		}
		if err = r.copyOut(pth, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return err
	}
	r.l.Info("downloaded folder", zap.String("path", src), zap.String("destination", dstPath), zap.Int("files", copied))
	return nil
}

func (r *Repo) copyOut(pth, target string) error {
	in, err := r.fs.Open(pth)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := r.hostFs.Create(target)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
