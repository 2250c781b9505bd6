package main

import (
	"github.com/spf13/cobra"

	cxerrors "cxref/internal/errors"
	"cxref/internal/query"
)

var (
	findTypes string
)

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find symbols by exact name",
	Long: `Lists every node whose name equals <name>, in node order, with the
source line of each location.

Examples:
  cxref find Widget
  cxref find run --types md,mdcl`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List every symbol name in the store",
	Args:  cobra.NoArgs,
	RunE:  runNames,
}

func init() {
	findCmd.Flags().StringVar(&findTypes, "types", "", "Node types to keep, e.g. Class|Struct or cl,st (default: all)")
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(namesCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	types, err := parseTypes(findTypes)
	if err != nil {
		return err
	}
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
	results, err := query.NewEngine(st, cwd, p.logger).Find(args[0], types)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return cxerrors.Newf(cxerrors.NotFound, "no symbol named %q", args[0])
	}
	return writeOutput(cmd, &ResultsResponse{Query: args[0], Types: findTypes, Results: results})
}

func runNames(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	st, err := p.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	names, err := st.Names()
	if err != nil {
		return err
	}
	if formatFlag == string(FormatHuman) {
		for _, n := range names {
			if _, err := cmd.OutOrStdout().Write([]byte(n + "\n")); err != nil {
				return err
			}
		}
		return nil
	}
	if names == nil {
		names = []string{}
	}
	return writeOutput(cmd, names)
}
