package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karst/internal/prof"
)

// setupProfiling reads the persistent profiling flags and starts the
// requested profilers. The returned cleanup stops them and writes the heap
// profile last, after the run's allocations settle; it is safe to call more
// than once.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	cpuPath, err := flags.GetString("cpu-profile")
	if err != nil {
		return nil, err
	}
	heapPath, err := flags.GetString("mem-profile")
	if err != nil {
		return nil, err
	}
	tracePath, err := flags.GetString("runtime-trace")
	if err != nil {
		return nil, err
	}

	session, err := prof.Start(prof.Options{CPUPath: cpuPath, TracePath: tracePath})
	if err != nil {
		return nil, err
	}

	done := false
	cleanup := func() {
		if done {
			return
		}
		done = true
		session.Stop()
		if heapPath != "" {
			if err := prof.WriteHeap(heapPath); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write heap profile: %v\n", err)
			}
		}
	}
	return cleanup, nil
}
