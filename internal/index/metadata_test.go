package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cxref/internal/filemeta"
	"cxref/internal/location"
	"cxref/internal/store"
	"cxref/internal/symbols"
)

func TestLoadMeta_NoFile(t *testing.T) {
	tmpDir := t.TempDir()

	meta, err := LoadMeta(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Fatal("expected nil meta when file doesn't exist")
	}
}

func TestSaveAndLoadMeta(t *testing.T) {
	tmpDir := t.TempDir()

	original := &IndexMeta{
		BuildID:       "0b6f1f0e-5d5c-4c55-9a51-3f2d7f5e9a10",
		CreatedAt:     time.Now().Truncate(time.Second),
		StorePath:     "/proj/.cxref/index.cxr",
		NodeCount:     17,
		FileCount:     42,
		Frontend:      "scip",
		FormatVersion: store.DefaultFormat.Version,
		IDWidth:       8,
		Duration:      "3.2s",
	}

	if err := original.Save(tmpDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(tmpDir, metadataFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("metadata file was not created")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	loaded, err := LoadMeta(tmpDir)
	if err != nil {
		t.Fatalf("LoadMeta failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected non-nil metadata")
	}

	if loaded.Version != MetadataVersion {
		t.Errorf("Version: got %d, want %d", loaded.Version, MetadataVersion)
	}
	if !loaded.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt: got %v, want %v", loaded.CreatedAt, original.CreatedAt)
	}
	if loaded.BuildID != original.BuildID {
		t.Errorf("BuildID: got %s, want %s", loaded.BuildID, original.BuildID)
	}
	if loaded.StorePath != original.StorePath {
		t.Errorf("StorePath: got %s, want %s", loaded.StorePath, original.StorePath)
	}
	if loaded.NodeCount != original.NodeCount || loaded.FileCount != original.FileCount {
		t.Errorf("counts: got %d/%d, want %d/%d", loaded.NodeCount, loaded.FileCount, original.NodeCount, original.FileCount)
	}
	if loaded.Frontend != original.Frontend {
		t.Errorf("Frontend: got %s, want %s", loaded.Frontend, original.Frontend)
	}
	if loaded.IDWidth != 8 {
		t.Errorf("IDWidth: got %d, want 8", loaded.IDWidth)
	}
}

func TestLoadMeta_VersionMismatch(t *testing.T) {
	tmpDir := t.TempDir()

	content := `{"version": 999, "createdAt": "2024-01-01T00:00:00Z"}`
	path := filepath.Join(tmpDir, metadataFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	meta, err := LoadMeta(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Fatal("expected nil meta for version mismatch")
	}
}

func TestLoadMeta_Malformed(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, metadataFile), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMeta(tmpDir); err == nil {
		t.Error("expected error for malformed metadata")
	}
}

func TestCheckFreshness_NilMeta(t *testing.T) {
	var meta *IndexMeta
	result := meta.CheckFreshness(nil)

	if result.Fresh {
		t.Error("nil meta should not be fresh")
	}
	if !result.RequiresRebuild {
		t.Error("nil meta should require a rebuild")
	}
	if result.Reason == "" {
		t.Error("should have a reason")
	}
}

// writeIndexedStore writes a store recording the given source files.
func writeIndexedStore(t *testing.T, dir string, sources []string) *IndexMeta {
	t.Helper()
	files, err := filemeta.Collect(sources)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := filemeta.Encode(files)
	if err != nil {
		t.Fatal(err)
	}
	forest := symbols.NewForest()
	for _, src := range sources {
		if _, err := forest.Add(forest.Root(), symbols.Variable, location.New(src, 1), "v"); err != nil {
			t.Fatal(err)
		}
	}
	storePath := filepath.Join(dir, "index.cxr")
	if err := store.WriteFile(storePath, forest, payload, store.Options{}); err != nil {
		t.Fatal(err)
	}
	return &IndexMeta{
		CreatedAt:     time.Now().Add(-2 * time.Hour),
		StorePath:     storePath,
		FileCount:     len(files),
		FormatVersion: store.DefaultFormat.Version,
	}
}

func TestCheckFreshness(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cpp")
	b := filepath.Join(dir, "b.cpp")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("int x;\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	meta := writeIndexedStore(t, dir, []string{a, b})

	result := meta.CheckFreshness([]string{a, b})
	if !result.Fresh {
		t.Fatalf("fresh store reported stale: %s", result.Reason)
	}
	if result.IndexAge != "2 hours" {
		t.Errorf("IndexAge = %q, want 2 hours", result.IndexAge)
	}

	// Same size, new content and mtime.
	if err := os.WriteFile(a, []byte("int y;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(a, future, future); err != nil {
		t.Fatal(err)
	}
	result = meta.CheckFreshness([]string{a, b})
	if result.Fresh {
		t.Fatal("modified file not detected")
	}
	if result.RequiresRebuild {
		t.Error("a content change should not require a format rebuild")
	}
	if len(result.Changes) != 1 || result.Changes[0].ChangeType != filemeta.ChangeModified {
		t.Errorf("Changes = %+v", result.Changes)
	}

	c := filepath.Join(dir, "c.cpp")
	if err := os.Remove(b); err != nil {
		t.Fatal(err)
	}
	result = meta.CheckFreshness([]string{a, c})
	if len(result.Changes) != 3 {
		t.Fatalf("Changes = %+v, want 3", result.Changes)
	}
	if !strings.Contains(result.Reason, "1 added, 1 modified, 1 deleted") {
		t.Errorf("Reason = %q", result.Reason)
	}
}

func TestCheckFreshness_Rebuild(t *testing.T) {
	dir := t.TempDir()

	missing := &IndexMeta{StorePath: filepath.Join(dir, "none.cxr"), FormatVersion: store.DefaultFormat.Version}
	result := missing.CheckFreshness(nil)
	if result.Fresh || !result.RequiresRebuild {
		t.Errorf("missing store: %+v", result)
	}

	old := &IndexMeta{StorePath: filepath.Join(dir, "none.cxr"), FormatVersion: 1}
	result = old.CheckFreshness(nil)
	if result.Fresh || !result.RequiresRebuild {
		t.Errorf("old format: %+v", result)
	}

	corrupt := filepath.Join(dir, "bad.cxr")
	if err := os.WriteFile(corrupt, []byte("not a store at all, just text"), 0644); err != nil {
		t.Fatal(err)
	}
	bad := &IndexMeta{StorePath: corrupt, FormatVersion: store.DefaultFormat.Version}
	result = bad.CheckFreshness(nil)
	if result.Fresh || !result.RequiresRebuild {
		t.Errorf("corrupt store: %+v", result)
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Minute, "1 minute"},
		{2 * time.Hour, "2 hours"},
		{1 * time.Hour, "1 hour"},
		{48 * time.Hour, "2 days"},
		{24 * time.Hour, "1 day"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			result := humanDuration(tc.duration)
			if result != tc.expected {
				t.Errorf("humanDuration(%v) = %q, want %q", tc.duration, result, tc.expected)
			}
		})
	}
}
