package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qjs [file]",
	Short: "Embeddable JavaScript runtime on WebAssembly",
	Long: `qjs - Run JavaScript safely using a QuickJS engine compiled to WebAssembly.

Run code from files, inline strings, or stdin. By default, script code has
no access to filesystem, network, or other system resources. Enable
capabilities explicitly with flags.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit console output as structured JSON logs")

	// Add run-specific flags to root (for default command)
	addRunFlags(rootCmd)
}

func parseMemoryBytes(s string) uint64 {
	switch strings.ToLower(s) {
	case "1mb":
		return 1 << 20
	case "16mb":
		return 16 << 20
	case "64mb":
		return 64 << 20
	case "256mb":
		return 256 << 20
	case "1gb":
		return 1 << 30
	default:
		return 0 // use default
	}
}
