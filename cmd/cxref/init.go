package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cxref/internal/config"
	cxerrors "cxref/internal/errors"
	"cxref/internal/manifest"
	"cxref/internal/paths"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cxref configuration",
	Long: `Creates a .cxref/ directory with a default config.json and project.toml
manifest in the project root. Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config and manifest")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := rootFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return cxerrors.New(cxerrors.InternalError, "failed to get current directory", err)
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	dataDir, err := paths.EnsureDataDir(root)
	if err != nil {
		return cxerrors.New(cxerrors.InternalError, "failed to create .cxref directory", err)
	}
	out := cmd.OutOrStdout()

	configPath := filepath.Join(dataDir, "config.json")
	if exists(configPath) && !initForce {
		fmt.Fprintf(out, "Config already exists: %s\n", configPath)
	} else {
		if err := config.DefaultConfig().Save(root); err != nil {
			return cxerrors.New(cxerrors.InternalError, "failed to write config", err)
		}
		fmt.Fprintf(out, "Wrote %s\n", configPath)
	}

	manifestPath := manifest.Path(root)
	if exists(manifestPath) && !initForce {
		fmt.Fprintf(out, "Manifest already exists: %s\n", manifestPath)
	} else {
		if err := manifest.Default().Save(manifestPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", manifestPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. List source directories or units in .cxref/project.toml")
	fmt.Fprintln(out, "  2. Run 'cxref index' to build the store")
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
