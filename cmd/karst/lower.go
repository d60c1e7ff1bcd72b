// Package main implements the karst CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karst/internal/driver"
	"karst/internal/trace"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] <path>...",
	Short: "Lower call scenarios to KIR",
	Long:  "Lower TOML call scenarios into KIR, one lowering context per file. Directories are walked for *.toml files.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLower,
}

func runLower(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	emitValue, err := cmd.Flags().GetString("emit")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	emit, err := driver.ParseEmitKind(emitValue)
	if err != nil {
		return err
	}
	progress, err := parseProgressMode(uiValue)
	if err != nil {
		return err
	}

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	files, err := driver.ListScenarioFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no scenario files found")
	}

	cache, err := driver.OpenDiskCache("karst")
	if err != nil {
		// Без кэша медленнее, но не фатально.
		fmt.Fprintf(cmd.ErrOrStderr(), "cache unavailable: %v\n", err)
		cache = nil
	}

	opts := driver.BatchOptions{
		Jobs:    jobs,
		Emit:    emit,
		Cache:   cache,
		NoCache: noCache,
		Timings: timings,
		Tracer:  trace.FromContext(cmd.Context()),
	}

	var res *driver.BatchResult
	if progress.wantTUI() {
		res, err = runLowerWithUI(cmd.Context(), "karst lower", files, opts)
	} else {
		res, err = driver.LowerBatch(cmd.Context(), files, opts)
	}
	if err != nil {
		return err
	}

	printBatch(res, quiet, timings)
	if res.Errors > 0 {
		return fmt.Errorf("%d of %d scenarios failed", res.Errors, len(res.Files))
	}
	return nil
}

// printBatch writes per-file artifacts to stdout and failures to stderr,
// in argument order.
func printBatch(res *driver.BatchResult, quiet, timings bool) {
	for i := range res.Files {
		f := &res.Files[i]
		if f.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.Path, f.Err)
			continue
		}
		if !quiet {
			if f.Cached {
				fmt.Fprintf(os.Stdout, "// %s (cached)\n", f.Path)
			} else {
				fmt.Fprintf(os.Stdout, "// %s\n", f.Path)
			}
		}
		fmt.Fprint(os.Stdout, f.Output)
		if timings {
			printFileTimings(os.Stdout, f.Timing)
		}
		if i != len(res.Files)-1 {
			fmt.Fprintln(os.Stdout)
		}
	}
}

func init() {
	lowerCmd.Flags().Int("jobs", 0, "parallel workers (0 = GOMAXPROCS)")
	lowerCmd.Flags().String("emit", "kir", "artifact to print (kir|funcinfo)")
	lowerCmd.Flags().Bool("no-cache", false, "lower even when a cached result exists")
	lowerCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
}
