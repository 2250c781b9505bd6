package main

import (
	"github.com/spf13/cobra"

	"cxref/internal/query"
	"cxref/internal/symbols"
)

var (
	treeDepth    int
	treeTypes    string
	collectDepth int
)

var nodeCmd = &cobra.Command{
	Use:   "node <index>",
	Short: "Show one node and its children",
	Args:  cobra.ExactArgs(1),
	RunE:  runNode,
}

var treeCmd = &cobra.Command{
	Use:   "tree [index]",
	Short: "Print the subtree below a node",
	Long: `Prints the subtree rooted at [index] (default: the root) in depth-first
order, indented by depth.

Examples:
  cxref tree
  cxref tree 42 --depth 2
  cxref tree --types cl,st`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

var collectCmd = &cobra.Command{
	Use:   "collect <index> <types>",
	Short: "List descendants of a node matching a type mask",
	Long: `Lists <index> and its descendants whose type is in <types>, in
depth-first order.

Examples:
  cxref collect 0 Class|Struct
  cxref collect 12 ref --depth 1`,
	Args: cobra.ExactArgs(2),
	RunE: runCollect,
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", -1, "Maximum depth below the start node (-1 for unlimited)")
	treeCmd.Flags().StringVar(&treeTypes, "types", "", "Node types to print (default: all)")
	collectCmd.Flags().IntVar(&collectDepth, "depth", -1, "Maximum depth below the start node (-1 for unlimited)")
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(collectCmd)
}

// withEngine opens the project's store and runs fn against a query engine.
func withEngine(cmd *cobra.Command, fn func(e *query.Engine) error) error {
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
	return fn(query.NewEngine(st, cwd, p.logger))
}

func runNode(cmd *cobra.Command, args []string) error {
	i, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	return withEngine(cmd, func(e *query.Engine) error {
		n, err := e.Node(i)
		if err != nil {
			return err
		}
		children, err := e.Children(i)
		if err != nil {
			return err
		}
		return writeOutput(cmd, &NodeResponse{Node: *n, Children: children})
	})
}

func runTree(cmd *cobra.Command, args []string) error {
	start := symbols.Index(0)
	if len(args) == 1 {
		i, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		start = i
	}
	types, err := parseTypes(treeTypes)
	if err != nil {
		return err
	}
	return withEngine(cmd, func(e *query.Engine) error {
		results, err := e.Subtree(start, treeDepth, types)
		if err != nil {
			return err
		}
		return writeOutput(cmd, &TreeResponse{Root: start, Depth: treeDepth, Results: results})
	})
}

func runCollect(cmd *cobra.Command, args []string) error {
	start, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	mask, err := parseTypes(args[1])
	if err != nil {
		return err
	}
	return withEngine(cmd, func(e *query.Engine) error {
		found, err := query.Collect(e.Store(), start, mask, collectDepth)
		if err != nil {
			return err
		}
		results := make([]query.Result, 0, len(found))
		for _, i := range found {
			r, err := e.Node(i)
			if err != nil {
				return err
			}
			results = append(results, *r)
		}
		return writeOutput(cmd, &ResultsResponse{Query: args[0], Types: args[1], Results: results})
	})
}
