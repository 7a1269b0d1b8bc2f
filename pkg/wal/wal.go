// Package wal provides a write-ahead log.
//
// The WAL keeps track of all changes to a repo, that is,
// which contributor did change what and when.
//
// Entries are identified by K-sortable tokens (ksuid). Tokens issued by a
// WAL are strictly increasing, so that the lexicographic order of tokens is
// the commit order.
package wal

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/storage"
	"github.com/ccsi/dmflite/pkg/wal/status"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	maxEntriesPerList = 1000
	maxConcurrency    = 64
)

// WAL describes a write-ahead log
type WAL struct {
	walStore          storage.Store // Append only store where WAL entries are written to
	maxConcurrency    int           // Max concurrency when reading
	connectionControl chan struct{} // How many max concurrent requests to send
	l                 *zap.Logger   // Logging
	now               func() time.Time

	mu     sync.Mutex
	tokens *iradix.Tree // index of all known tokens, sorted
	last   ksuid.KSUID
}

// Option to the write-ahead log
type Option func(w *WAL)

// MaxConcurrency sets the max number of concurrent reads
func MaxConcurrency(c int) Option {
	return func(w *WAL) {
		if c > 0 {
			w.maxConcurrency = c
		}
	}
}

// Logger sets a logger for this WAL
func Logger(logger *zap.Logger) Option {
	return func(w *WAL) {
		if logger != nil {
			w.l = logger
		}
	}
}

// Clock sets the time source used to stamp entries
func Clock(now func() time.Time) Option {
	return func(w *WAL) {
		if now != nil {
			w.now = now
		}
	}
}

func defaultWAL() *WAL {
	return &WAL{
		maxConcurrency: maxConcurrency,
		l:              zap.NewNop(),
		now:            time.Now,
		tokens:         iradix.New(),
	}
}

// New builds a write-ahead log with entries stored at the walStore.
//
// Existing entries are scanned so that new tokens sort after them.
func New(ctx context.Context, walStore storage.Store, options ...Option) (*WAL, error) {
	wal := defaultWAL()
	for _, option := range options {
		option(wal)
	}
	wal.walStore = walStore
	wal.connectionControl = make(chan struct{}, wal.maxConcurrency)

	keys, err := walStore.Keys(ctx)
	if err != nil {
		return nil, status.ErrGetTokens.WrapWithLog(wal.l, err, zap.Stringer("store", walStore))
	}
	txn := wal.tokens.Txn()
	for _, key := range keys {
		k, err := ksuid.Parse(key)
		if err != nil {
			wal.l.Warn("ignoring unexpected key in wal store", zap.String("key", key))
			continue
		}
		txn.Insert([]byte(key), struct{}{})
		if ksuid.Compare(k, wal.last) > 0 {
			wal.last = k
		}
	}
	wal.tokens = txn.Commit()
	wal.l.Debug("opened wal", zap.Int("entries", wal.tokens.Len()), zap.String("last", wal.Last()))
	return wal, nil
}

// getToken issues a token such that tokens are K-sortable and strictly increasing.
//
// Must be called with the lock held.
func (w *WAL) getToken(at time.Time) (ksuid.KSUID, error) {
	k, err := ksuid.NewRandomWithTime(at)
	if err != nil {
		return ksuid.Nil, status.ErrKSUID.Wrap(err)
	}
	if ksuid.Compare(k, w.last) <= 0 {
		// clock skew or several entries within the same second
		k = w.last.Next()
	}
	return k, nil
}

// Add appends an entry to the WAL and returns it
func (w *WAL) Add(ctx context.Context, author model.Contributor, message string) (*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	k, err := w.getToken(now)
	if err != nil {
		return nil, status.ErrTokenGenerate.WrapWithLog(w.l, err)
	}
	e := NewEntry(k.String(), now, author, message)
	b, err := Marshal(e)
	if err != nil {
		return nil, status.ErrAddWALEntry.WrapWithLog(w.l, err, zap.String("token", e.Token))
	}

	err = w.walStore.Put(ctx, e.Token, bytes.NewReader(b), storage.NoOverWrite) // Should be a new entry
	if err != nil {
		return nil, status.ErrAddWALEntry.WrapWithLog(w.l, err, zap.String("token", e.Token))
	}
	w.tokens, _, _ = w.tokens.Insert([]byte(e.Token), struct{}{})
	w.last = k
	w.l.Debug("write wal entry", zap.String("token", e.Token))
	return e, nil
}

// Last returns the last token issued, or the empty string for an empty log
func (w *WAL) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last.IsNil() {
		return ""
	}
	return w.last.String()
}

// Len returns the number of entries in the log
func (w *WAL) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokens.Len()
}

// Get reads a single entry
func (w *WAL) Get(ctx context.Context, token string) (*Entry, error) {
	if _, err := ksuid.Parse(token); err != nil {
		return nil, status.ErrInvalidToken.Wrap(err)
	}
	b, err := storage.ReadAll(ctx, w.walStore, token)
	if err != nil {
		return nil, status.ErrReadWALEntry.Wrap(err)
	}
	entry, err := Unmarshal(b)
	if err != nil {
		return nil, status.ErrReadWALEntry.WrapMessage("token: %s, err: %v", token, err)
	}
	if entry.Token != token {
		return nil, status.ErrReadWALEntry.WrapMessage("token mismatch: stored as %s, entry says %s", token, entry.Token)
	}
	return entry, nil
}

// ListTokens lists tokens in commit order, strictly after fromToken.
//
// If fromToken is empty the listing starts from the beginning.
// The returned next token is the one to pass to the next call, or empty when the listing is complete.
func (w *WAL) ListTokens(ctx context.Context, fromToken string, max int) (tokens []string, next string, err error) {
	if max <= 0 {
		return nil, "", status.ErrMaxCount.WrapWithLog(w.l, nil, zap.Int("max count", max), zap.String("token", fromToken))
	}
	if fromToken != "" {
		if _, err = ksuid.Parse(fromToken); err != nil {
			return nil, "", status.ErrInvalidToken.Wrap(err)
		}
	}
	if max > maxEntriesPerList {
		max = maxEntriesPerList
	}

	w.mu.Lock()
	snapshot := w.tokens
	w.mu.Unlock()

	iterator := snapshot.Root().Iterator()
	iterator.SeekLowerBound([]byte(fromToken))
	for {
		if err = ctx.Err(); err != nil {
			return nil, "", err
		}
		key, _, ok := iterator.Next()
		if !ok {
			return tokens, "", nil
		}
		token := string(key)
		if token == fromToken {
			continue
		}
		if len(tokens) == max {
			return tokens, tokens[len(tokens)-1], nil
		}
		tokens = append(tokens, token)
	}
}

func (w *WAL) getConnection() {
	w.connectionControl <- struct{}{}
}

func (w *WAL) releaseConnection() {
	<-w.connectionControl
}

// ListEntries reads a page of entries in commit order, strictly after fromToken.
//
// Entries are read in parallel. All read errors are reported.
func (w *WAL) ListEntries(ctx context.Context, fromToken string, max int) ([]Entry, string, error) {
	tokens, next, err := w.ListTokens(ctx, fromToken, max)
	if err != nil {
		return nil, "", err
	}
	entries := make([]Entry, len(tokens))
	errs := make([]error, len(tokens))

	var wg sync.WaitGroup
	for i, t := range tokens {
		w.getConnection() // concurrency control
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			defer w.releaseConnection()
			entry, err := w.Get(ctx, token)
			if err != nil {
				w.l.Error("failed to read token", zap.String("token", token), zap.Error(err))
				errs[i] = err
				return
			}
			entries[i] = *entry
		}(i, t)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, "", err
	}
	return entries, next, nil
}

// Walk visits all entries in commit order, strictly after fromToken
func (w *WAL) Walk(ctx context.Context, fromToken string, visit func(Entry) error) error {
	next := fromToken
	for {
		entries, more, err := w.ListEntries(ctx, next, maxEntriesPerList)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := visit(e); err != nil {
				return err
			}
		}
		if more == "" {
			return nil
		}
		next = more
	}
}
