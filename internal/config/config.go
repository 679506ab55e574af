// internal/config/config.go
//
// This package handles configuration and the .charlock directory structure.
// A project that runs charlock gets a .charlock/ folder in its root holding the
// project config, optional presets, an optional settings file and logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each project
	ProjectDirName = ".charlock"

	// SettingsFileDisabled turns the settings file off when used as settings_file.
	SettingsFileDisabled = "none"

	defaultPresetID     = "default"
	defaultSettingsFile = "settings.yaml"
	defaultPresetsDir   = "presets"
)

const defaultProjectConfigYAML = `# character lock project configuration
version: 1

# Preset applied at startup. "default" is built in; others live in presets/.
preset: default

# Optional settings file (relative to .charlock/). When it exists it overrides
# the preset, and edits are re-applied while charlock serve is running.
# Set to "none" to ignore it.
settings_file: settings.yaml
watch_settings: true

# HTTP hook bridge for hosts that call the plugin out of process.
bridge:
  enabled: true
  host: 127.0.0.1
  port: 8765
  # Hook payload limit in bytes and HTTP timeouts (Go durations).
  max_body_bytes: 1048576
  read_timeout: 15s
  write_timeout: 15s
  idle_timeout: 60s
`

// BridgeConfig captures hook bridge preferences from config.yaml.
type BridgeConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"`
	Host         string        `yaml:"host,omitempty"`
	Port         int           `yaml:"port,omitempty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	IdleTimeout  time.Duration `yaml:"idle_timeout,omitempty"`
}

// ProjectConfig models .charlock/config.yaml.
type ProjectConfig struct {
	Version       int          `yaml:"version"`
	Preset        string       `yaml:"preset"`
	PresetsDir    string       `yaml:"presets_dir,omitempty"`
	SettingsFile  string       `yaml:"settings_file,omitempty"`
	WatchSettings *bool        `yaml:"watch_settings,omitempty"`
	Bridge        BridgeConfig `yaml:"bridge"`
}

// Config holds the runtime configuration for charlock.
type Config struct {
	// ProjectDir is the directory charlock was pointed at
	ProjectDir string

	// StateDir is ProjectDir/.charlock
	StateDir string

	Project ProjectConfig
}

// InitProjectDir creates the .charlock directory structure in projectDir.
//
// Structure created:
// .charlock/
// ├── config.yaml
// ├── logs/      <- charlock.log
// └── presets/   <- *.yaml and *.go preset definitions
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, defaultPresetsDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a Config populated with project settings. A missing
// config.yaml leaves the defaults in place.
func NewConfig(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", projectDir, err)
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// PresetsDir returns the directory scanned for preset definitions.
func (c *Config) PresetsDir() string {
	return c.resolve(c.Project.PresetsDir)
}

// SettingsFilePath returns the optional settings file location, or "" when
// settings_file is "none".
func (c *Config) SettingsFilePath() string {
	if c.Project.SettingsFile == "" || strings.EqualFold(c.Project.SettingsFile, SettingsFileDisabled) {
		return ""
	}
	return c.resolve(c.Project.SettingsFile)
}

// WatchSettings reports whether settings file edits should be re-applied live.
func (c *Config) WatchSettings() bool {
	if c.Project.WatchSettings == nil {
		return true
	}
	return *c.Project.WatchSettings
}

// DefaultPreset returns the preset ID applied at startup.
func (c *Config) DefaultPreset() string {
	return c.Project.Preset
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(c.StateDir, path))
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:      1,
		Preset:       defaultPresetID,
		PresetsDir:   defaultPresetsDir,
		SettingsFile: defaultSettingsFile,
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.PresetsDir) == "" {
		pc.PresetsDir = defaultPresetsDir
	}
	if strings.TrimSpace(pc.SettingsFile) == "" {
		pc.SettingsFile = defaultSettingsFile
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Preset = strings.TrimSpace(pc.Preset)
	if pc.Preset == "" {
		pc.Preset = defaultPresetID
	}
	pc.PresetsDir = strings.TrimSpace(pc.PresetsDir)
	pc.SettingsFile = strings.TrimSpace(pc.SettingsFile)
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Bridge.Port < 0 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port %d out of range", pc.Bridge.Port)
	}
	if pc.Bridge.MaxBodyBytes < 0 {
		return fmt.Errorf("bridge.max_body_bytes must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":  pc.Bridge.ReadTimeout,
		"write_timeout": pc.Bridge.WriteTimeout,
		"idle_timeout":  pc.Bridge.IdleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("bridge.%s must not be negative", name)
		}
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
