// Package profiling captures CPU, heap, and execution trace profiles
// for brewindex runs. The CLI wires these behind the --profile-* flags.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler owns the open profile files for a single process lifetime.
type Profiler struct {
	cpuFile   *os.File
	traceFile *os.File
}

// NewProfiler returns a Profiler with no active captures.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins CPU profiling into the file at path. The returned
// cleanup stops the profile and closes the file; call it before the
// process exits or the profile is unreadable.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile %s: %w", path, err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}

	p.cpuFile = f

	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// StartTrace begins execution tracing into the file at path. The
// returned cleanup stops the trace and closes the file.
func (p *Profiler) StartTrace(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file %s: %w", path, err)
	}

	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start trace: %w", err)
	}

	p.traceFile = f

	return func() {
		trace.Stop()
		_ = p.traceFile.Close()
		p.traceFile = nil
	}, nil
}

// WriteHeap writes a point-in-time heap profile to the file at path.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// Collect garbage first so the profile reflects live objects.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}

	return nil
}
