package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	cxerrors "cxref/internal/errors"
	"cxref/internal/filemeta"
	"cxref/internal/index"
	"cxref/internal/paths"
	"cxref/internal/storage"
	"cxref/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the store whenever indexed sources change",
	Long: `Builds the store if it is stale, then polls the files the manifest
resolves to and rebuilds after each quiet period that follows a change.
Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	catalog, err := storage.Open(p.root, p.logger)
	if err != nil {
		p.logger.Warn("Build catalog unavailable", map[string]interface{}{"error": err})
		catalog = nil
	} else {
		defer catalog.Close()
	}

	out := cmd.OutOrStdout()
	rebuild := func(ctx context.Context) {
		res, err := index.Build(ctx, index.BuildOptions{
			RepoRoot: p.root,
			Config:   p.cfg,
			Logger:   p.logger,
			Catalog:  catalog,
		})
		switch {
		case errors.Is(err, cxerrors.ErrLocked):
			p.logger.Warn("Another build is running; will retry on the next change", nil)
		case err != nil:
			p.logger.Error("Rebuild failed", map[string]interface{}{"error": err})
		case res.Skipped:
			p.logger.Debug("Store already fresh", nil)
		default:
			fmt.Fprintf(out, "%s  rebuilt: %d nodes, %d files, %d skipped units\n",
				time.Now().Format("15:04:05"), res.Meta.NodeCount, res.Meta.FileCount, len(res.UnitErrors))
		}
	}

	rebuild(ctx)
	if ctx.Err() != nil {
		return nil
	}

	w := watcher.New(watcher.Config{
		PollInterval: time.Duration(p.cfg.Watch.PollIntervalMs) * time.Millisecond,
		Debounce:     time.Duration(p.cfg.Watch.DebounceMs) * time.Millisecond,
	}, p.logger, func() ([]string, error) {
		return index.UnitPaths(p.root, p.cfg)
	}, func(ctx context.Context, changes []filemeta.Change) {
		for _, c := range changes {
			fmt.Fprintf(out, "  %s %s\n", changeMarker(string(c.ChangeType)), relativeTo(p.root, c.Path))
		}
		rebuild(ctx)
	})

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", p.root)
	return w.Run(ctx)
}

func relativeTo(root, path string) string {
	if rel, err := paths.RepoRelative(path, root); err == nil {
		return filepath.FromSlash(rel)
	}
	return path
}
