package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:     "metadata-aggregator",
	Short:   "Runs a metadata aggregation pipeline: load, prune, filter, sign, serialize",
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.SetVersionTemplate("metadata-aggregator version {{.Version}}\n")
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
