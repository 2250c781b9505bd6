package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cxref/internal/config"
)

func TestStatus(t *testing.T) {
	root := setupProject(t, map[string]string{"a.cpp": "int a;\n", "b.h": "int b;\n"})

	meta, fr, err := Status(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if meta != nil || fr.Fresh || !fr.RequiresRebuild {
		t.Errorf("before build: meta = %+v, freshness = %+v", meta, fr)
	}

	if _, err := Build(context.Background(), BuildOptions{RepoRoot: root, Frontend: &fakeFrontend{}}); err != nil {
		t.Fatal(err)
	}
	meta, fr, err = Status(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if meta == nil || !fr.Fresh {
		t.Fatalf("after build: meta = %+v, freshness = %+v", meta, fr)
	}

	if err := os.Remove(filepath.Join(root, "b.h")); err != nil {
		t.Fatal(err)
	}
	_, fr, err = Status(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fr.Fresh || len(fr.Changes) != 1 || fr.Changes[0].ChangeType != "deleted" {
		t.Errorf("after delete: %+v", fr)
	}
}

func TestStatus_SettingsChanged(t *testing.T) {
	root := setupProject(t, map[string]string{"a.cpp": "int a;\n"})
	if _, err := Build(context.Background(), BuildOptions{RepoRoot: root, Frontend: &fakeFrontend{}}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Store.IDWidth = 8
	_, fr, err := Status(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if fr.Fresh || !fr.RequiresRebuild {
		t.Errorf("freshness = %+v, want rebuild", fr)
	}
}
