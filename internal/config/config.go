package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"cxref/internal/paths"
)

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. CXREF_STORE_IDWIDTH=8.
const EnvPrefix = "CXREF"

// Config represents the complete cxref configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Index   IndexConfig   `json:"index" mapstructure:"index"`
	Context ContextConfig `json:"context" mapstructure:"context"`
	Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// StoreConfig controls the binary store
type StoreConfig struct {
	// Path is relative to the project root unless absolute
	Path    string `json:"path" mapstructure:"path"`
	IDWidth int    `json:"idWidth" mapstructure:"idWidth"`
}

// IndexConfig controls the build pipeline
type IndexConfig struct {
	Frontend         string   `json:"frontend" mapstructure:"frontend"`
	ScipPath         string   `json:"scipPath" mapstructure:"scipPath"`
	Extensions       []string `json:"extensions" mapstructure:"extensions"`
	Ignore           []string `json:"ignore" mapstructure:"ignore"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// ContextConfig describes context-line extraction. The cap is fixed.
type ContextConfig struct {
	MaxLineBytes int `json:"maxLineBytes" mapstructure:"maxLineBytes"`
}

// WatchConfig controls `cxref watch`
type WatchConfig struct {
	PollIntervalMs int `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	DebounceMs     int `json:"debounceMs" mapstructure:"debounceMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	// BuildLogMaxSize rotates .cxref/logs/index.log, e.g. "10MB". Empty disables rotation.
	BuildLogMaxSize    string `json:"buildLogMaxSize" mapstructure:"buildLogMaxSize"`
	BuildLogMaxBackups int    `json:"buildLogMaxBackups" mapstructure:"buildLogMaxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Store: StoreConfig{
			Path:    paths.DataDirName + "/" + paths.StoreFile,
			IDWidth: 4,
		},
		Index: IndexConfig{
			Frontend:         "treesitter",
			ScipPath:         "index.scip",
			Extensions:       []string{".c", ".h", ".cc", ".cpp", ".cxx", ".hh", ".hpp", ".hxx"},
			Ignore:           []string{},
			MaxFileSizeBytes: 4 << 20,
		},
		Context: ContextConfig{
			MaxLineBytes: 1023,
		},
		Watch: WatchConfig{
			PollIntervalMs: 2000,
			DebounceMs:     1000,
		},
		Logging: LoggingConfig{
			Format:             "human",
			Level:              "info",
			BuildLogMaxSize:    "10MB",
			BuildLogMaxBackups: 3,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.idWidth", d.Store.IDWidth)
	v.SetDefault("index.frontend", d.Index.Frontend)
	v.SetDefault("index.scipPath", d.Index.ScipPath)
	v.SetDefault("index.extensions", d.Index.Extensions)
	v.SetDefault("index.ignore", d.Index.Ignore)
	v.SetDefault("index.maxFileSizeBytes", d.Index.MaxFileSizeBytes)
	v.SetDefault("context.maxLineBytes", d.Context.MaxLineBytes)
	v.SetDefault("watch.pollIntervalMs", d.Watch.PollIntervalMs)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.buildLogMaxSize", d.Logging.BuildLogMaxSize)
	v.SetDefault("logging.buildLogMaxBackups", d.Logging.BuildLogMaxBackups)
}

// LoadConfig loads configuration from .cxref/config.json, with CXREF_*
// environment variables taking precedence over the file.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.DataDir(repoRoot))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .cxref/config.json
func (c *Config) Save(repoRoot string) error {
	dir, err := paths.EnsureDataDir(repoRoot)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), append(data, '\n'), 0644)
}

// StorePath resolves the store path against the project root.
func (c *Config) StorePath(repoRoot string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(repoRoot, filepath.FromSlash(c.Store.Path))
}

// ScipIndexPath resolves the SCIP index path against the project root.
func (c *Config) ScipIndexPath(repoRoot string) string {
	if c.Index.ScipPath == "" || filepath.IsAbs(c.Index.ScipPath) {
		return c.Index.ScipPath
	}
	return filepath.Join(repoRoot, filepath.FromSlash(c.Index.ScipPath))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Store.IDWidth != 4 && c.Store.IDWidth != 8 {
		return &ConfigError{Field: "store.idWidth", Message: "must be 4 or 8"}
	}
	if c.Store.Path == "" {
		return &ConfigError{Field: "store.path", Message: "must not be empty"}
	}
	switch c.Index.Frontend {
	case "treesitter":
	case "scip":
		if c.Index.ScipPath == "" {
			return &ConfigError{Field: "index.scipPath", Message: "required for the scip front-end"}
		}
	default:
		return &ConfigError{Field: "index.frontend", Message: "must be treesitter or scip"}
	}
	for _, ext := range c.Index.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return &ConfigError{Field: "index.extensions", Message: "extension " + ext + " must start with '.'"}
		}
	}
	if c.Index.MaxFileSizeBytes < 0 {
		return &ConfigError{Field: "index.maxFileSizeBytes", Message: "must not be negative"}
	}
	if c.Context.MaxLineBytes != 1023 {
		return &ConfigError{Field: "context.maxLineBytes", Message: "is fixed at 1023"}
	}
	if c.Watch.PollIntervalMs <= 0 {
		return &ConfigError{Field: "watch.pollIntervalMs", Message: "must be positive"}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	if c.Logging.BuildLogMaxBackups < 0 {
		return &ConfigError{Field: "logging.buildLogMaxBackups", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
