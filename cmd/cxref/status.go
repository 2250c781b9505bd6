package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"cxref/internal/index"
	"cxref/internal/paths"
	"cxref/internal/storage"
	"cxref/internal/version"
)

var statusBuilds int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index freshness and recent builds",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusBuilds, "builds", 5, "Recent builds to list")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	meta, fr, err := index.Status(p.root, p.cfg)
	if err != nil {
		return err
	}
	resp := &StatusResponse{
		Version:   version.Version,
		Root:      p.root,
		StorePath: p.cfg.StorePath(p.root),
		Meta:      meta,
		Freshness: fr,
	}

	// Only read the catalog if a build has created it; status never creates files.
	if statusBuilds > 0 && exists(filepath.Join(paths.DataDir(p.root), storage.CatalogFile)) {
		db, err := storage.Open(p.root, p.logger)
		if err != nil {
			p.logger.Warn("Build catalog unavailable", map[string]interface{}{"error": err})
		} else {
			defer db.Close()
			builds, err := db.RecentBuilds(context.Background(), statusBuilds)
			if err != nil {
				p.logger.Warn("Failed to read build catalog", map[string]interface{}{"error": err})
			}
			resp.Builds = builds
		}
	}
	return writeOutput(cmd, resp)
}
