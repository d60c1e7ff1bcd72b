package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karst/internal/target"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List supported ABI targets",
	Long:  "List every registered target ABI policy a scenario can select with its target key.",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

func runTargets(_ *cobra.Command, _ []string) error {
	def := target.Default().Name()
	for _, name := range target.Names() {
		if name == def {
			fmt.Fprintf(os.Stdout, "%s (default)\n", name)
			continue
		}
		fmt.Fprintln(os.Stdout, name)
	}
	return nil
}
