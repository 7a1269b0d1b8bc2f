package core

import (
	"time"

	"github.com/ccsi/dmflite/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option for a repository
type Option func(*Repo)

const defaultCacheSize = 1024

// Logger sets the logger for the repository and its components
func Logger(logger *zap.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.l = logger
		}
	}
}

// WithMetrics collects repository metrics on a prometheus registry
func WithMetrics(registry prometheus.Registerer) Option {
	return func(r *Repo) {
		r.registry = registry
	}
}

// WithTimeout bounds the duration of every operation. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Repo) {
		r.timeout = timeout
	}
}

// Clock sets the time source used to stamp history entries
func Clock(now func() time.Time) Option {
	return func(r *Repo) {
		if now != nil {
			r.now = now
		}
	}
}

// CacheSize sets the number of decoded history entries kept in memory
func CacheSize(size int) Option {
	return func(r *Repo) {
		if size > 0 {
			r.cacheSize = size
		}
	}
}

// WithFs hosts the repository on some afero file system rather than on the OS.
//
// The same file system serves as the destination of downloads and the source of imports.
// With a non-OS file system, the index is held in memory and rebuilt on open.
func WithFs(fs afero.Fs) Option {
	return func(r *Repo) {
		if fs != nil {
			r.hostFs = fs
		}
	}
}

func defaultRepo() *Repo {
	return &Repo{
		l:         zap.NewNop(),
		now:       time.Now,
		cacheSize: defaultCacheSize,
		hostFs:    afero.NewOsFs(),
	}
}

func (r *Repo) setupMetrics() error {
	if r.registry == nil {
		return nil
	}
	m, err := metrics.New(r.registry, r.descriptor.Name)
	if err != nil {
		return err
	}
	r.metrics = m
	return nil
}
