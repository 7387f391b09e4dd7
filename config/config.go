// Package config loads the shell's settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is shared; building a validator is expensive.
var validate = validator.New()

// Config holds every user-configurable setting.
type Config struct {
	// PluginPaths are searched recursively for plugins. Relative paths are
	// resolved against the directory of the config file.
	PluginPaths []string `yaml:"plugin_paths" validate:"dive,required"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	// QueueDepth is how many hook events may wait for the plugin worker.
	QueueDepth int `yaml:"queue_depth" validate:"min=0,max=65536"`

	// ShowErrors prints full error messages and exit statuses of failed
	// commands.
	ShowErrors bool `yaml:"show_errors"`

	// HistoryLimit caps the directory history. Zero means unlimited.
	HistoryLimit int `yaml:"history_limit" validate:"min=0"`

	// MultiLinePrompt puts the prompt tick on its own line.
	MultiLinePrompt bool `yaml:"multi_line_prompt"`

	// TruncationFactor shortens each directory in the prompt to this many
	// characters. Zero disables truncation.
	TruncationFactor int `yaml:"truncation_factor" validate:"min=0"`

	// Dir is the directory the configuration was loaded from.
	Dir string `yaml:"-"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:   "warn",
		LogFormat:  "text",
		QueueDepth: 64,
		ShowErrors: true,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/rush/config.yaml, falling back to
// ~/.config/rush/config.yaml.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rush", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(home, ".config", "rush", "config.yaml"), nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		cfg.Dir = filepath.Dir(absPath)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Dir(absPath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, resolves plugin paths against dir and
// validates the result. Unknown keys are rejected.
func Parse(data []byte, dir string) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Dir = dir
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	for i, p := range cfg.PluginPaths {
		cfg.PluginPaths[i] = cfg.resolve(p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	if filepath.IsAbs(path) || c.Dir == "" || path == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
