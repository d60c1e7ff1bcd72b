package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karst/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the karst lowering cache",
	Long:  "Remove every cached lowering result from the user cache directory.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cache, err := driver.OpenDiskCache("karst")
	if err != nil {
		return fmt.Errorf("failed to locate cache: %w", err)
	}
	dir := cache.Dir()
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to remove %q: %w", dir, err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "removed %s\n", dir)
	return nil
}
