package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cxref/internal/index"
	"cxref/internal/logging"
	"cxref/internal/paths"
	"cxref/internal/storage"
)

var (
	indexForce      bool
	indexKeepBuilds int
)

// buildLogFile is the JSON build log inside .cxref/logs.
const buildLogFile = "index.log"

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the cross-reference store",
	Long: `Resolves the manifest into translation units, parses them with the
configured front-end and writes the store atomically.

The build is skipped when the existing store still matches every indexed
file. Each attempt is recorded in the build catalog.

Examples:
  cxref index            # Build, or skip when fresh
  cxref index --force    # Rebuild unconditionally`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Rebuild even if the store is fresh")
	indexCmd.Flags().IntVar(&indexKeepBuilds, "keep-builds", 50, "Build catalog rows to keep (0 keeps all)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	buildLog, logFile, err := logging.OpenRotating(
		filepath.Join(paths.LogsDir(p.root), buildLogFile),
		logging.ParseSize(p.cfg.Logging.BuildLogMaxSize),
		p.cfg.Logging.BuildLogMaxBackups,
		logging.Config{Format: logging.JSONFormat, Level: logging.DebugLevel},
	)
	if err != nil {
		p.logger.Warn("Build log unavailable", map[string]interface{}{"error": err})
		buildLog = p.logger
	} else {
		defer logFile.Close()
	}

	catalog, err := storage.Open(p.root, p.logger)
	if err != nil {
		p.logger.Warn("Build catalog unavailable", map[string]interface{}{"error": err})
		catalog = nil
	} else {
		defer catalog.Close()
	}

	result, err := index.Build(ctx, index.BuildOptions{
		RepoRoot: p.root,
		Config:   p.cfg,
		Force:    indexForce,
		Logger:   buildLog,
		Catalog:  catalog,
	})
	if err != nil {
		return err
	}

	for _, ue := range result.UnitErrors {
		p.logger.Warn("Translation unit skipped", map[string]interface{}{
			"path":  ue.Path,
			"error": ue.Error,
		})
	}

	if catalog != nil && indexKeepBuilds > 0 {
		if _, err := catalog.Prune(context.WithoutCancel(ctx), indexKeepBuilds); err != nil {
			p.logger.Warn("Failed to prune build catalog", map[string]interface{}{"error": err})
		}
	}

	if err := writeOutput(cmd, result); err != nil {
		return err
	}
	if formatFlag == string(FormatHuman) && !result.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "\nBuild log: %s\n", filepath.Join(paths.LogsDir(p.root), buildLogFile))
	}
	return nil
}
