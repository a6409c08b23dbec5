package testsupport

import (
	"path/filepath"
	"testing"

	"scott/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Database.Path = filepath.Join(base, "data", "scott.db")
	cfgVal.Database.Seed = false
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.LogMonitor.File = filepath.Join(base, "logs", "monitored.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSeed enables the demo seed rows.
func WithSeed() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.Seed = true
	}
}

// WithMonitoredFile points the log monitor at a file under the temp root,
// writing content to it first when content is non-empty.
func WithMonitoredFile(name, content string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, name)
		if content != "" {
			WriteText(b.t, path, content)
		}
		b.cfg.LogMonitor.File = path
	}
}

// WithInterval overrides the default poll interval in seconds.
func WithInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LogMonitor.UpdateInterval = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Database.Path))
}
