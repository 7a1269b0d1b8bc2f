package core

import (
	"context"
	"sort"
	"sync"
	"time"

	blobstatus "github.com/ccsi/dmflite/pkg/blob/status"
	"github.com/ccsi/dmflite/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxParallelDeletes = 10

// PurgeReport describes the outcome of a blob purge
type PurgeReport struct {
	// Scanned is the number of stored blobs
	Scanned int
	// Kept is the number of blobs referenced by the history or by a pending batch upload
	Kept int
	// Unreferenced lists the checksums of blobs referenced nowhere
	Unreferenced []string
	// Deleted is false on a dry run
	Deleted bool
}

// PurgeBlobs deletes stored content referenced by no history entry.
//
// Such content is left over by batch uploads which never completed. Content journaled by a pending
// batch is kept, so that reconciling the batch remains possible. With dryRun, nothing is deleted.
func (r *Repo) PurgeBlobs(ctx context.Context, dryRun bool) (report PurgeReport, err error) {
	defer r.observe("purge_blobs", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.lock(); err != nil {
		return PurgeReport{}, err
	}
	defer r.mu.Unlock()

	referenced, err := r.referencedChecksums(ctx)
	if err != nil {
		return report, err
	}
	stored, err := r.blobs.Checksums(ctx)
	if err != nil {
		return report, err
	}
	report.Scanned = len(stored)
	for _, checksum := range stored {
		if _, ok := referenced[checksum]; ok {
			report.Kept++
			continue
		}
		report.Unreferenced = append(report.Unreferenced, checksum)
	}
	sort.Strings(report.Unreferenced)
	if dryRun || len(report.Unreferenced) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	deleted := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDeletes)
	for _, checksum := range report.Unreferenced {
		checksum := checksum
		g.Go(func() error {
			if err := r.blobs.Delete(gctx, checksum); err != nil && !errors.Is(err, blobstatus.ErrNotFound) {
				return err
			}
			mu.Lock()
			deleted++
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	report.Deleted = err == nil
	r.l.Info("purged unreferenced blobs", zap.Int("scanned", report.Scanned), zap.Int("deleted", deleted), zap.Error(err))
	return report, err
}

func (r *Repo) referencedChecksums(ctx context.Context) (map[string]struct{}, error) {
	checksums, err := r.index.Checksums()
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{}, len(checksums))
	for _, checksum := range checksums {
		referenced[checksum] = struct{}{}
	}

	batches, err := r.batches(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if b.Complete {
			continue
		}
		for _, item := range b.Items {
			if item.Checksum != "" && item.State != ItemCommitted {
				referenced[item.Checksum] = struct{}{}
			}
		}
	}
	return referenced, nil
}
