package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cxref/internal/config"
	cxerrors "cxref/internal/errors"
	"cxref/internal/filemeta"
	"cxref/internal/frontend"
	"cxref/internal/logging"
	"cxref/internal/paths"
	"cxref/internal/storage"
	"cxref/internal/store"
	"cxref/internal/symbols"
)

// BuildOptions configures one store build.
type BuildOptions struct {
	RepoRoot string
	Config   *config.Config
	// Force rebuilds even when the existing store is fresh.
	Force  bool
	Logger *logging.Logger
	// Catalog, when set, receives a row for every attempt past the lock.
	Catalog *storage.DB
	// Frontend overrides the front-end named in Config.
	Frontend frontend.Frontend
}

// UnitError is a translation unit the front-end could not parse.
type UnitError struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// BuildResult reports what a build did.
type BuildResult struct {
	Meta       *IndexMeta  `json:"meta,omitempty" yaml:"meta,omitempty"`
	Skipped    bool        `json:"skipped" yaml:"skipped"`
	Reason     string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Units      int         `json:"units" yaml:"units"`
	UnitErrors []UnitError `json:"unitErrors,omitempty" yaml:"unitErrors,omitempty"`
	StoreBytes int         `json:"storeBytes" yaml:"storeBytes"`
}

// Build runs the pipeline: lock, manifest units, front-end, file metadata,
// atomic store write, metadata sidecar, catalog record.
func Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, cxerrors.New(cxerrors.PreconditionViolation, "invalid configuration", err)
	}

	root, err := projectRoot(opts.RepoRoot)
	if err != nil {
		return nil, err
	}
	dataDir := paths.DataDir(root)

	lock, err := AcquireLock(dataDir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	units, err := ResolveUnits(root, cfg)
	if err != nil {
		return nil, err
	}
	unitPaths := pathsOf(units)

	if !opts.Force {
		prev, err := LoadMeta(dataDir)
		if err != nil {
			logger.Warn("Ignoring unreadable index metadata", map[string]interface{}{"error": err})
		}
		if prev != nil && prev.StorePath == cfg.StorePath(root) && prev.IDWidth == cfg.Store.IDWidth {
			if fr := prev.CheckFreshness(unitPaths); fr.Fresh {
				logger.Info("Index is up to date", map[string]interface{}{
					"build_id": prev.BuildID,
					"files":    prev.FileCount,
				})
				return &BuildResult{Meta: prev, Skipped: true, Reason: "index is up to date", Units: len(units)}, nil
			}
		}
	}

	fe := opts.Frontend
	if fe == nil {
		fe, err = frontend.New(cfg.Index.Frontend, frontend.Options{
			SCIPPath:    cfg.ScipIndexPath(root),
			ProjectRoot: root,
		})
		if err != nil {
			return nil, err
		}
	}

	b := &builder{
		ctx:     ctx,
		cfg:     cfg,
		root:    root,
		dataDir: dataDir,
		fe:      fe,
		logger:  logger.With(map[string]interface{}{"frontend": fe.Name()}),
		started: time.Now(),
		buildID: uuid.NewString(),
	}
	result, files, err := b.run(units, unitPaths)
	b.record(opts.Catalog, result, files, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type builder struct {
	ctx     context.Context
	cfg     *config.Config
	root    string
	dataDir string
	fe      frontend.Frontend
	logger  *logging.Logger
	started time.Time
	buildID string
}

func (b *builder) run(units []frontend.TranslationUnit, unitPaths []string) (*BuildResult, []filemeta.Entry, error) {
	b.logger.Info("Building index", map[string]interface{}{
		"build_id": b.buildID,
		"units":    len(units),
	})

	result := &BuildResult{Units: len(units)}
	forest := symbols.NewForest()
	for _, tu := range units {
		if err := b.ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := b.fe.Parse(b.ctx, tu, forest, forest.Root()); err != nil {
			switch cxerrors.CodeOf(err) {
			case cxerrors.Unavailable, cxerrors.PreconditionViolation:
				return nil, nil, err
			}
			if b.ctx.Err() != nil {
				return nil, nil, b.ctx.Err()
			}
			b.logger.Warn("Skipping translation unit", map[string]interface{}{
				"path":  tu.Path,
				"error": err,
			})
			result.UnitErrors = append(result.UnitErrors, UnitError{Path: tu.Path, Error: err.Error()})
		}
	}

	files, err := filemeta.Collect(unitPaths)
	if err != nil {
		return nil, nil, err
	}
	payload, err := filemeta.Encode(files)
	if err != nil {
		return nil, nil, err
	}

	storePath := b.cfg.StorePath(b.root)
	w, err := store.NewWriter(forest, payload, store.Options{IDWidth: b.cfg.Store.IDWidth})
	if err != nil {
		return nil, nil, err
	}
	if err := w.WriteFile(storePath); err != nil {
		return nil, nil, err
	}
	result.StoreBytes = w.Size()

	meta := &IndexMeta{
		BuildID:       b.buildID,
		CreatedAt:     b.started.UTC(),
		StorePath:     storePath,
		NodeCount:     forest.Len(),
		FileCount:     len(files),
		Frontend:      b.fe.Name(),
		FormatVersion: store.DefaultFormat.Version,
		IDWidth:       b.cfg.Store.IDWidth,
		Duration:      time.Since(b.started).Round(time.Millisecond).String(),
	}
	if err := meta.Save(b.dataDir); err != nil {
		return nil, nil, err
	}
	result.Meta = meta

	b.logger.Info("Index built", map[string]interface{}{
		"build_id":    b.buildID,
		"nodes":       meta.NodeCount,
		"files":       meta.FileCount,
		"bytes":       result.StoreBytes,
		"unit_errors": len(result.UnitErrors),
		"duration":    meta.Duration,
	})
	return result, files, nil
}

// record writes the attempt to the catalog. Catalog failures only log.
func (b *builder) record(catalog *storage.DB, result *BuildResult, files []filemeta.Entry, buildErr error) {
	if catalog == nil {
		return
	}
	row := storage.Build{
		ID:            b.buildID,
		StartedAt:     b.started,
		FinishedAt:    time.Now(),
		Status:        storage.StatusOK,
		StorePath:     b.cfg.StorePath(b.root),
		Frontend:      b.fe.Name(),
		FormatVersion: store.DefaultFormat.Version,
	}
	if buildErr != nil {
		row.Status = storage.StatusFailed
		row.Error = buildErr.Error()
	} else {
		row.NodeCount = result.Meta.NodeCount
		row.FileCount = result.Meta.FileCount
		row.StoreBytes = int64(result.StoreBytes)
	}
	// A cancelled build still gets its row.
	if err := catalog.RecordBuild(context.WithoutCancel(b.ctx), row, files); err != nil {
		b.logger.Warn("Failed to record build in catalog", map[string]interface{}{
			"build_id": b.buildID,
			"error":    err,
		})
	}
}

func projectRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", cxerrors.New(cxerrors.PreconditionViolation, fmt.Sprintf("project root %s", abs), err)
	}
	if !info.IsDir() {
		return "", cxerrors.Newf(cxerrors.PreconditionViolation, "project root %s is not a directory", abs)
	}
	return paths.Canonicalize(abs)
}
