package index

import (
	"cxref/internal/config"
	"cxref/internal/frontend"
	"cxref/internal/manifest"
	"cxref/internal/paths"
)

// ResolveUnits loads the project manifest and expands it into translation
// units using the index settings of cfg.
func ResolveUnits(root string, cfg *config.Config) ([]frontend.TranslationUnit, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	m, err := manifest.Load(manifest.Path(root))
	if err != nil {
		return nil, err
	}
	return m.ResolveUnits(root, manifest.ScanOptions{
		Extensions:       cfg.Index.Extensions,
		Ignore:           cfg.Index.Ignore,
		MaxFileSizeBytes: cfg.Index.MaxFileSizeBytes,
	})
}

// UnitPaths is ResolveUnits reduced to the unit file paths.
func UnitPaths(root string, cfg *config.Config) ([]string, error) {
	units, err := ResolveUnits(root, cfg)
	if err != nil {
		return nil, err
	}
	return pathsOf(units), nil
}

func pathsOf(units []frontend.TranslationUnit) []string {
	out := make([]string, len(units))
	for i, tu := range units {
		out[i] = tu.Path
	}
	return out
}

// Status reports the recorded metadata of the last build of root and whether
// it still matches the files the manifest resolves to. meta is nil when no
// build has completed.
func Status(root string, cfg *config.Config) (*IndexMeta, FreshnessResult, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	meta, err := LoadMeta(paths.DataDir(root))
	if err != nil {
		return nil, FreshnessResult{}, err
	}
	if meta == nil {
		return nil, FreshnessResult{Reason: "no index built yet", RequiresRebuild: true}, nil
	}
	units, err := ResolveUnits(root, cfg)
	if err != nil {
		return meta, FreshnessResult{}, err
	}
	fr := meta.CheckFreshness(pathsOf(units))
	if fr.Fresh && (meta.StorePath != cfg.StorePath(root) || meta.IDWidth != cfg.Store.IDWidth) {
		fr.Fresh = false
		fr.RequiresRebuild = true
		fr.Reason = "store settings changed since last build"
	}
	return meta, fr, nil
}
