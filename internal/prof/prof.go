// Package prof wires the Go profilers into a lowering run.
package prof

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options name the profile outputs a run wants. Empty paths disable the
// corresponding profiler.
type Options struct {
	CPUPath   string // pprof CPU samples
	TracePath string // Go runtime execution trace
}

// Session holds the profilers running for one invocation. A zero-value
// Session is inert; Stop is safe on it.
type Session struct {
	cpu    *os.File
	rtrace *os.File
}

// Start opens the requested profilers. On failure everything already
// started is torn down, so a non-nil error leaves no profiler running.
func Start(o Options) (*Session, error) {
	s := &Session{}
	if o.CPUPath != "" {
		f, err := os.Create(o.CPUPath)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpu = f
	}
	if o.TracePath != "" {
		f, err := os.Create(o.TracePath)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.Stop()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		s.rtrace = f
	}
	return s, nil
}

// Stop ends whatever the session started, in reverse start order.
// Idempotent; safe on nil.
func (s *Session) Stop() {
	if s == nil {
		return
	}
	if s.rtrace != nil {
		trace.Stop()
		_ = s.rtrace.Close()
		s.rtrace = nil
	}
	if s.cpu != nil {
		pprof.StopCPUProfile()
		_ = s.cpu.Close()
		s.cpu = nil
	}
}

// WriteHeap forces a GC and captures the heap profile to path. Called once
// at exit when --mem-profile is set.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
