package core

import (
	"context"
	"sort"
	"sync"
	"time"

	blobstatus "github.com/ccsi/dmflite/pkg/blob/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const verifyWorkers = 8

// VerifyReport lists integrity problems found in a repository
type VerifyReport struct {
	// Checked is the number of blobs checked
	Checked int
	// Missing lists checksums referenced by the history without stored content
	Missing []string
	// Corrupt lists checksums whose stored content does not match
	Corrupt []string
	// Modified lists tracked documents whose working tree content differs from their latest version
	Modified []string
}

// OK tells if no problem was found
func (v VerifyReport) OK() bool {
	return len(v.Missing) == 0 && len(v.Corrupt) == 0 && len(v.Modified) == 0
}

// Verify checks the content of every version recorded in the history, and the working tree
func (r *Repo) Verify(ctx context.Context) (report VerifyReport, err error) {
	defer r.observe("verify", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.rlock(); err != nil {
		return VerifyReport{}, err
	}
	defer r.mu.RUnlock()

	checksums, err := r.index.Checksums()
	if err != nil {
		return report, err
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyWorkers)
	for _, checksum := range checksums {
		checksum := checksum
		g.Go(func() error {
			_, err := r.blobs.Get(gctx, checksum)
			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch {
			case err == nil:
			case errors.Is(err, blobstatus.ErrNotFound):
				report.Missing = append(report.Missing, checksum)
			case errors.Is(err, blobstatus.ErrChecksumMismatch), errors.Is(err, blobstatus.ErrCodec):
				report.Corrupt = append(report.Corrupt, checksum)
			default:
				return err
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return report, err
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Corrupt)

	paths, err := r.index.Paths("")
	if err != nil {
		return report, err
	}
	for _, pth := range paths {
		modified, err := r.isModified(pth)
		if err != nil {
			return report, err
		}
		if modified {
			report.Modified = append(report.Modified, pth)
		}
	}
	if !report.OK() {
		r.l.Warn("repository verification found problems",
			zap.Strings("missing", report.Missing),
			zap.Strings("corrupt", report.Corrupt),
			zap.Strings("modified", report.Modified),
		)
	}
	return report, nil
}

func (r *Repo) isModified(pth string) (bool, error) {
	id, err := r.index.IDByPath(pth)
	if err != nil {
		return false, translate(err, "no object tracked at %s", pth)
	}
	latest, err := r.index.Latest(id)
	if err != nil {
		return false, translate(err, "no history for %s", pth)
	}
	if latest.Record.Folder {
		return false, nil
	}
	data, err := afero.ReadFile(r.fs, pth)
	if err != nil {
		// a missing file counts as modified
		return true, nil
	}
	return model.Checksum(data) != latest.Record.Checksum, nil
}
