package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the API listener configuration.
type Server struct {
	Bind string `toml:"bind"`
}

// Database contains the records store configuration.
type Database struct {
	Path string `toml:"path"`
	Seed bool   `toml:"seed"`
}

// LogMonitor contains configuration for the log tail service.
type LogMonitor struct {
	File           string `toml:"file"`
	MaxLines       int    `toml:"max_lines"`
	UpdateInterval int    `toml:"update_interval"`
	StopTimeoutMS  int    `toml:"stop_timeout_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scott.
//
// Configuration sections by subsystem:
//   - Server: API bind address
//   - Database: SQLite records store and demo seed
//   - LogMonitor: tailed file, line cap, poll interval and stop wait
//   - Logging: log format, level, directory and retention
type Config struct {
	Server     Server     `toml:"server"`
	Database   Database   `toml:"database"`
	LogMonitor LogMonitor `toml:"log_monitor"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scott.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the server writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Logging.Dir, filepath.Dir(c.Database.Path)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ServerLogPath is the file the server appends its own log output to.
func (c *Config) ServerLogPath() string {
	return filepath.Join(c.Logging.Dir, serverLogName)
}

// LockPath is the single-instance lock file kept next to the database.
func (c *Config) LockPath() string {
	return c.Database.Path + ".lock"
}

// LogMonitorFile returns the path the log tail service reads.
func (c *Config) LogMonitorFile() string {
	return c.LogMonitor.File
}

// LogMonitorMaxLines returns the line cap used when a request omits one.
func (c *Config) LogMonitorMaxLines() int {
	return c.LogMonitor.MaxLines
}

// LogMonitorInterval returns the default poll interval.
func (c *Config) LogMonitorInterval() time.Duration {
	return time.Duration(c.LogMonitor.UpdateInterval) * time.Second
}

// LogMonitorStopTimeout returns how long a stop waits for a session to exit.
func (c *Config) LogMonitorStopTimeout() time.Duration {
	return time.Duration(c.LogMonitor.StopTimeoutMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
