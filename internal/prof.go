// Package internal holds helpers shared by the commands of this module.
package internal

import (
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Profiler captures a CPU profile and a heap profile over the run of a command.
//
// Either path may be empty, to skip the corresponding profile.
type Profiler struct {
	cpuPath string
	memPath string
	cpu     *os.File
	l       *zap.Logger
}

// StartProfiler starts CPU profiling, if requested
func StartProfiler(cpuPath, memPath string, logger *zap.Logger) (*Profiler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Profiler{cpuPath: cpuPath, memPath: memPath, l: logger}
	if cpuPath == "" {
		return p, nil
	}
	f, err := os.Create(cpuPath)
	if err != nil {
		return nil, err
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	p.cpu = f
	return p, nil
}

// Stop ends CPU profiling and writes the heap profile
func (p *Profiler) Stop() error {
	var err error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		err = multierr.Append(err, p.cpu.Close())
		p.cpu = nil
		p.l.Info("wrote cpu profile", zap.String("path", p.cpuPath))
	}
	if p.memPath != "" {
		err = multierr.Append(err, p.writeHeap())
	}
	return err
}

func (p *Profiler) writeHeap() error {
	mstats := new(runtime.MemStats)
	runtime.ReadMemStats(mstats)
	p.l.Info("memory usage",
		zap.Uint64("MiB for heap (un-GC)", mstats.Alloc/1024/1024),
		zap.Uint64("MiB for heap (max ever)", mstats.HeapSys/1024/1024),
		zap.Int("num go routines", runtime.NumGoroutine()),
	)

	f, err := os.Create(p.memPath)
	if err != nil {
		return err
	}
	if err = pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		_ = f.Close()
		return err
	}
	p.l.Info("wrote heap profile", zap.String("path", p.memPath))
	return f.Close()
}
