package main

import (
	"fmt"
	"io"

	"karst/internal/observ"
)

func printFileTimings(out io.Writer, report *observ.Report) {
	if out == nil || report == nil {
		return
	}
	for _, p := range report.Phases {
		_, _ = fmt.Fprintf(out, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			_, _ = fmt.Fprintf(out, "  // %s", p.Note)
		}
		_, _ = fmt.Fprintln(out)
	}
	_, _ = fmt.Fprintf(out, "  %-20s %7.2f ms\n", "total", report.TotalMS)
}
