package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Store.IDWidth != 4 {
		t.Errorf("Store.IDWidth = %d, want 4", cfg.Store.IDWidth)
	}
	if cfg.Store.Path != ".cxref/index.cxr" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, ".cxref/index.cxr")
	}
	if cfg.Index.Frontend != "treesitter" {
		t.Errorf("Index.Frontend = %q, want treesitter", cfg.Index.Frontend)
	}
	if cfg.Context.MaxLineBytes != 1023 {
		t.Errorf("Context.MaxLineBytes = %d, want 1023", cfg.Context.MaxLineBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad version", func(c *Config) { c.Version = 9 }, "version"},
		{"bad id width", func(c *Config) { c.Store.IDWidth = 2 }, "store.idWidth"},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"bad frontend", func(c *Config) { c.Index.Frontend = "clang" }, "index.frontend"},
		{"scip without path", func(c *Config) { c.Index.Frontend = "scip"; c.Index.ScipPath = "" }, "index.scipPath"},
		{"bad extension", func(c *Config) { c.Index.Extensions = []string{"cpp"} }, "index.extensions"},
		{"negative size", func(c *Config) { c.Index.MaxFileSizeBytes = -1 }, "index.maxFileSizeBytes"},
		{"context cap", func(c *Config) { c.Context.MaxLineBytes = 80 }, "context.maxLineBytes"},
		{"zero poll interval", func(c *Config) { c.Watch.PollIntervalMs = 0 }, "watch.pollIntervalMs"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -5 }, "watch.debounceMs"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			cerr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.IDWidth != 4 || cfg.Index.Frontend != "treesitter" {
		t.Errorf("LoadConfig without file = %+v, want defaults", cfg)
	}
	if len(cfg.Index.Extensions) == 0 {
		t.Error("default extensions missing")
	}
}

func TestSaveLoad(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Store.IDWidth = 8
	cfg.Index.Frontend = "scip"
	cfg.Index.Ignore = []string{"third_party"}
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".cxref", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Store.IDWidth != 8 {
		t.Errorf("Store.IDWidth = %d, want 8", loaded.Store.IDWidth)
	}
	if loaded.Index.Frontend != "scip" {
		t.Errorf("Index.Frontend = %q, want scip", loaded.Index.Frontend)
	}
	if len(loaded.Index.Ignore) != 1 || loaded.Index.Ignore[0] != "third_party" {
		t.Errorf("Index.Ignore = %v", loaded.Index.Ignore)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	root := t.TempDir()
	if err := DefaultConfig().Save(root); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CXREF_STORE_IDWIDTH", "8")
	t.Setenv("CXREF_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.IDWidth != 8 {
		t.Errorf("Store.IDWidth = %d, want 8 from env", cfg.Store.IDWidth)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from env", cfg.Logging.Level)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".cxref")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(root); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.StorePath("/proj"); got != filepath.Join("/proj", ".cxref", "index.cxr") {
		t.Errorf("StorePath = %q", got)
	}
	cfg.Store.Path = "/abs/store.cxr"
	if got := cfg.StorePath("/proj"); got != "/abs/store.cxr" {
		t.Errorf("StorePath(abs) = %q", got)
	}
	if got := cfg.ScipIndexPath("/proj"); got != filepath.Join("/proj", "index.scip") {
		t.Errorf("ScipIndexPath = %q", got)
	}
}
