// Package config loads the safearchive server configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the SAFEARCHIVE_CONFIG environment variable. There is no discovery of
// config files in default locations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meigma/safearchive"
)

// EnvVar names the environment variable consulted when no path is given.
const EnvVar = "SAFEARCHIVE_CONFIG"

// ErrNoConfig is returned by Load when neither a path nor EnvVar is set.
var ErrNoConfig = errors.New("config: no config file given")

// Config is the top-level server configuration.
type Config struct {
	// Listen is the address archives are served on.
	// Default: :8080
	Listen string `yaml:"listen"`

	// MetricsListen is the address /metrics is served on.
	// Empty disables the metrics listener.
	MetricsListen string `yaml:"metrics_listen"`

	// Compress enables gzip responses for clients that accept them.
	Compress bool `yaml:"compress"`

	Log LogConfig `yaml:"log"`

	// Archives lists the directories to serve.
	Archives []ArchiveConfig `yaml:"archives"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// ArchiveConfig describes one served directory.
type ArchiveConfig struct {
	// Root is the directory to index and serve.
	Root string `yaml:"root"`

	// URLName is the mount path segment. Defaults to the base name of Root.
	URLName string `yaml:"url_name"`

	// IndexFile is the redirect target for the archive root.
	// Default: index.html
	IndexFile string `yaml:"index_file"`

	Icon  string `yaml:"icon"`
	Title string `yaml:"title"`

	// SafeExtensions are served without fingerprint verification.
	SafeExtensions []string `yaml:"safe_extensions"`

	// Algorithm selects the fingerprint digest.
	// Default: sha256
	Algorithm string `yaml:"algorithm"`

	Workers  int `yaml:"workers"`
	MaxFiles int `yaml:"max_files"`
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, or at $SAFEARCHIVE_CONFIG when path
// is empty, on top of Default and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: pass --config or set %s", ErrNoConfig, EnvVar)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(c.Archives) == 0 {
		errs = append(errs, errors.New("at least one archive is required"))
	}
	seen := make(map[string]int, len(c.Archives))
	for i, a := range c.Archives {
		if a.Root == "" {
			errs = append(errs, fmt.Errorf("archives[%d].root is required", i))
			continue
		}
		name := a.MountName()
		if name == "" || strings.Contains(name, "/") {
			errs = append(errs, fmt.Errorf("archives[%d].url_name %q is invalid", i, name))
		} else if j, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("archives[%d].url_name %q duplicates archives[%d]", i, name, j))
		} else {
			seen[name] = i
		}
		if a.Algorithm != "" && !safearchive.Algorithm(a.Algorithm).Available() {
			errs = append(errs, fmt.Errorf("archives[%d].algorithm %q is not supported", i, a.Algorithm))
		}
		if a.Workers < 0 {
			errs = append(errs, fmt.Errorf("archives[%d].workers must not be negative", i))
		}
		if a.MaxFiles < 0 {
			errs = append(errs, fmt.Errorf("archives[%d].max_files must not be negative", i))
		}
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// MountName returns the URL name the archive is served under.
func (a ArchiveConfig) MountName() string {
	if name := strings.Trim(a.URLName, "/"); name != "" {
		return name
	}
	return filepath.Base(filepath.Clean(a.Root))
}

// Options converts the archive entry into construction options.
func (a ArchiveConfig) Options() []safearchive.Option {
	opts := []safearchive.Option{
		safearchive.WithURLName(a.MountName()),
	}
	if a.IndexFile != "" {
		opts = append(opts, safearchive.WithIndexFile(a.IndexFile))
	}
	if a.Icon != "" {
		opts = append(opts, safearchive.WithIconFileName(a.Icon))
	}
	if a.Title != "" {
		opts = append(opts, safearchive.WithDisplayName(a.Title))
	}
	if len(a.SafeExtensions) > 0 {
		opts = append(opts, safearchive.WithSafeExtensions(a.SafeExtensions...))
	}
	if a.Algorithm != "" {
		opts = append(opts, safearchive.WithAlgorithm(safearchive.Algorithm(a.Algorithm)))
	}
	if a.Workers > 0 {
		opts = append(opts, safearchive.WithWorkers(a.Workers))
	}
	if a.MaxFiles > 0 {
		opts = append(opts, safearchive.WithMaxFiles(a.MaxFiles))
	}
	return opts
}
