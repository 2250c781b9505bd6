package main

import (
	"github.com/spf13/cobra"

	"cxref/internal/version"
)

var (
	// rootFlag is the --root project directory override
	rootFlag string
	// formatFlag is the --format output format
	formatFlag string
	// logLevelFlag overrides logging.level from the config
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "cxref",
	Short: "cxref - C/C++ cross-reference store",
	Long: `cxref builds a compact, memory-mappable cross-reference store for a C/C++
project and answers location and name lookups against it.

Locations are written "<path>,<offset>" where offset is a 1-indexed byte
offset into the file. Relative paths resolve against the current directory.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("cxref version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "",
		"Project root (default: nearest ancestor containing .cxref, else the current directory)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human", "Output format (human, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
}
