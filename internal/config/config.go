// Package config provides configuration loading and structs for lula.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where lula looks for its config file when none is given.
const DefaultPath = "/usr/local/etc/lula/config.yaml"

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
}

// RecoveryConfig controls where notes are searched for and where recovered
// copies are written.
type RecoveryConfig struct {
	// VolumesRoot is scanned for Time Machine backups (normally /Volumes).
	VolumesRoot string `yaml:"volumes_root"`
	OutputDir   string `yaml:"output_dir"`
	// CopyRTF keeps a copy of each note's TXT.rtf next to the .txt output.
	CopyRTF          *bool `yaml:"copy_rtf"`
	Workers          int   `yaml:"workers"`
	IndexAttachments bool  `yaml:"index_attachments"`
}

// CopyRTFOrDefault returns whether to copy the raw RTF; defaults to true when unset.
func (r *RecoveryConfig) CopyRTFOrDefault() bool {
	if r.CopyRTF != nil {
		return *r.CopyRTF
	}
	return true
}

// StorageConfig holds paths for the manifest database and the search index.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WatchConfig holds live Stickies directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	expandPaths(&cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path. When path is DefaultPath and a config.yaml exists in
// the working directory, that file is used instead so commands run from a
// checkout pick up the local config. When no file exists at DefaultPath,
// defaults are used. Returns the path actually loaded ("" for defaults).
func LoadOrDefault(path string) (*Config, string, error) {
	if path == DefaultPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			expandPaths(cfg, "")
			return cfg, "", nil
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Recovery.VolumesRoot = expandPath(cfg.Recovery.VolumesRoot, configDir)
	cfg.Recovery.OutputDir = expandPath(cfg.Recovery.OutputDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
