package core

import (
	"context"
	"time"

	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/wal"

	"go.uber.org/zap"
)

// Log returns the history of the whole repository, in commit order.
//
// Entries which cannot be decoded are skipped.
func (r *Repo) Log(ctx context.Context) (entries []model.HistoryEntry, err error) {
	defer r.observe("log", time.Now(), &err)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	err = r.wal.Walk(ctx, "", func(e wal.Entry) error {
		he, err := e.HistoryEntry()
		if err != nil {
			r.l.Warn("skipping malformed history entry", zap.String("token", e.Token), zap.Error(err))
			return nil
		}
		entries = append(entries, he)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
