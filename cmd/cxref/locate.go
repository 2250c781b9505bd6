package main

import (
	"os"

	"github.com/spf13/cobra"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/paths"
	"cxref/internal/query"
)

var locateCmd = &cobra.Command{
	Use:   "locate <path,offset>",
	Short: "Find the symbol at a location",
	Long: `Looks up the symbol recorded at exactly <path>,<offset>. The offset is a
1-indexed byte offset. Relative paths resolve against the current directory.

Examples:
  cxref locate src/widget.cpp,120
  cxref locate /abs/path/main.c,1 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runLocate,
}

var contextCmd = &cobra.Command{
	Use:   "context <path,offset>",
	Short: "Print a location with its source line",
	Long: `Prints "<path>,<offset>" followed by a tab and the source line containing
the offset. No store is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize <path>",
	Short: "Print the canonical absolute form of a path",
	Args:  cobra.ExactArgs(1),
	RunE:  runCanonicalize,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(canonicalizeCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	st, err := p.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cwd, err := workingDir()
	if err != nil {
		return err
	}
	r, err := query.NewEngine(st, cwd, p.logger).Locate(args[0])
	if err != nil {
		return err
	}
	return writeOutput(cmd, &ResultsResponse{Query: args[0], Results: []query.Result{*r}})
}

func runContext(cmd *cobra.Command, args []string) error {
	cwd, err := workingDir()
	if err != nil {
		return err
	}
	key, err := location.ResolveKey(args[0], cwd)
	if err != nil {
		return err
	}
	loc, err := location.Decode(key)
	if err != nil {
		return err
	}
	return writeOutput(cmd, &ContextResponse{
		Location: key,
		Context:  location.Context(loc.Path, loc.Offset),
		Display:  location.Display(key, cwd),
	})
}

func runCanonicalize(cmd *cobra.Command, args []string) error {
	cwd, err := workingDir()
	if err != nil {
		return err
	}
	canon, err := paths.Resolve(args[0], cwd)
	if err != nil {
		return err
	}
	return writeOutput(cmd, &CanonicalizeResponse{Input: args[0], Path: canon})
}

func workingDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", cxerrors.New(cxerrors.InternalError, "failed to get current directory", err)
	}
	return cwd, nil
}
