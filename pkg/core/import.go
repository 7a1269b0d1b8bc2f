package core

import (
	"context"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// ImportConfidence is the confidence recorded on imported documents
	ImportConfidence = "experimental"

	defaultMimetype = "application/octet-stream"
)

// MimetypeOf guesses the mimetype of a file from its extension
func MimetypeOf(name string) string {
	if m := mime.TypeByExtension(filepath.Ext(name)); m != "" {
		return m
	}
	return defaultMimetype
}

// ImportFolder uploads a directory of the host into the repository, below parentPath.
//
// Folders are created first, then each file is committed as a new document.
// Files which fail to upload are reported together, and do not stop the import.
func (r *Repo) ImportFolder(ctx context.Context, srcDir, parentPath, description string) (id string, err error) {
	defer r.observe("import_folder", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	info, err := r.hostFs.Stat(srcDir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", status.ErrNotAFolder.WrapMessage("%s is not a directory", srcDir)
	}
	parent, err := cleanPath(parentPath)
	if err != nil {
		return "", err
	}
	top := path.Join(parent, filepath.Base(srcDir))
	if id, err = r.createFolder(ctx, top, "", description, r.user, false); err != nil {
		return "", err
	}

	var errs error
	var files int
	walkErr := afero.Walk(r.hostFs, srcDir, func(src string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if e := ctx.Err(); e != nil {
			return e
		}
		rel, err := filepath.Rel(srcDir, src)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.Name() == model.SentinelFile || info.Name() == model.MetaDir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := path.Join(top, filepath.ToSlash(rel))
		if info.IsDir() {
			if _, err := r.createFolder(ctx, target, "", "", r.user, false); err != nil {
				errs = multierr.Append(errs, err)
				return filepath.SkipDir
			}
			return nil
		}

		data, err := afero.ReadFile(r.hostFs, src)
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		_, err = r.createDocument(ctx, DocumentRequest{
			Bytes:        data,
			Path:         target,
			OriginalName: info.Name(),
			Mimetype:     MimetypeOf(info.Name()),
			Confidence:   ImportConfidence,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		files++
		return nil
	})

	r.l.Info("imported folder", zap.String("source", srcDir), zap.String("path", top), zap.Int("files", files), zap.Error(errs))
	return id, multierr.Append(walkErr, errs)
}
