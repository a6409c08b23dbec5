package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scott/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvLogMonitorFile, "")
	t.Setenv(config.EnvDatabasePath, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "scott", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "scott", "logs")
	if cfg.Logging.Dir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Logging.Dir, wantLogDir)
	}
	if cfg.LogMonitorFile() != filepath.Join(wantLogDir, "scott.log") {
		t.Fatalf("expected monitor to tail the server log, got %q", cfg.LogMonitorFile())
	}
	if cfg.ServerLogPath() != cfg.LogMonitorFile() {
		t.Fatalf("server log %q should match monitored file %q", cfg.ServerLogPath(), cfg.LogMonitorFile())
	}
	if cfg.Database.Path != filepath.Join(tempHome, ".local", "share", "scott", "scott.db") {
		t.Fatalf("unexpected database path %q", cfg.Database.Path)
	}
	if cfg.LogMonitorMaxLines() != 1000 {
		t.Fatalf("unexpected max lines %d", cfg.LogMonitorMaxLines())
	}
	if cfg.LogMonitorInterval() != 5*time.Second {
		t.Fatalf("unexpected interval %s", cfg.LogMonitorInterval())
	}
	if cfg.LogMonitorStopTimeout() != 500*time.Millisecond {
		t.Fatalf("unexpected stop timeout %s", cfg.LogMonitorStopTimeout())
	}
	if cfg.Server.Bind != "127.0.0.1:5000" {
		t.Fatalf("unexpected bind %q", cfg.Server.Bind)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvLogMonitorFile, "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[server]
bind = "0.0.0.0:8080"

[database]
path = "~/data/scott.db"
seed = true

[log_monitor]
file = "~/logs/app.log"
max_lines = 200
update_interval = 2
stop_timeout_ms = 250

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.LogMonitorFile() != filepath.Join(tempHome, "logs", "app.log") {
		t.Fatalf("unexpected monitor file %q", cfg.LogMonitorFile())
	}
	if cfg.Database.Path != filepath.Join(tempHome, "data", "scott.db") || !cfg.Database.Seed {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.LogMonitorMaxLines() != 200 || cfg.LogMonitorInterval() != 2*time.Second {
		t.Fatalf("unexpected monitor settings %+v", cfg.LogMonitor)
	}
	if cfg.LogMonitorStopTimeout() != 250*time.Millisecond {
		t.Fatalf("unexpected stop timeout %s", cfg.LogMonitorStopTimeout())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lower-cased logging settings, got %+v", cfg.Logging)
	}
}

func TestLoadUsesEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	logFile := filepath.Join(t.TempDir(), "external.log")
	dbFile := filepath.Join(t.TempDir(), "env.db")
	t.Setenv(config.EnvLogMonitorFile, logFile)
	t.Setenv(config.EnvDatabasePath, dbFile)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogMonitorFile() != logFile {
		t.Fatalf("expected env log file %q, got %q", logFile, cfg.LogMonitorFile())
	}
	if cfg.Database.Path != dbFile {
		t.Fatalf("expected env database %q, got %q", dbFile, cfg.Database.Path)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"interval": "[log_monitor]\nupdate_interval = -3\n",
		"lines":    "[log_monitor]\nmax_lines = -1\n",
		"format":   "[logging]\nformat = \"xml\"\n",
		"level":    "[logging]\nlevel = \"loud\"\n",
		"bind":     "[server]\nbind = \"nonsense\"\n",
		"unknown":  "[paths]\nstaging_dir = \"/tmp\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvLogMonitorFile, "")
	t.Setenv(config.EnvDatabasePath, "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	for _, section := range []string{"server", "database", "log_monitor", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Fatalf("sample missing [%s]", section)
		}
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if !strings.HasPrefix(cfg.LogMonitorFile(), tempHome) {
		t.Fatalf("expected monitor file under HOME, got %q", cfg.LogMonitorFile())
	}
}

func TestEnsureDirectoriesCreatesLogAndDatabaseDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Dir = filepath.Join(base, "logs")
	cfg.Database.Path = filepath.Join(base, "db", "scott.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Logging.Dir, filepath.Dir(cfg.Database.Path)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
