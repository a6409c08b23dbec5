package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	c.normalizeLogging()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	return c.normalizeLogMonitor()
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir
	}
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if value, ok := os.LookupEnv(EnvDatabasePath); ok && strings.TrimSpace(value) != "" {
		if c.Database.Path == "" || c.Database.Path == defaultDatabasePath {
			c.Database.Path = strings.TrimSpace(value)
		}
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogMonitor() error {
	c.LogMonitor.File = strings.TrimSpace(c.LogMonitor.File)
	if c.LogMonitor.File == "" {
		if value, ok := os.LookupEnv(EnvLogMonitorFile); ok {
			c.LogMonitor.File = strings.TrimSpace(value)
		}
	}
	if c.LogMonitor.File == "" {
		c.LogMonitor.File = filepath.Join(c.Logging.Dir, serverLogName)
	}
	var err error
	if c.LogMonitor.File, err = expandPath(c.LogMonitor.File); err != nil {
		return fmt.Errorf("log_monitor.file: %w", err)
	}
	if c.LogMonitor.UpdateInterval == 0 {
		c.LogMonitor.UpdateInterval = defaultUpdateInterval
	}
	if c.LogMonitor.StopTimeoutMS == 0 {
		c.LogMonitor.StopTimeoutMS = defaultStopTimeoutMS
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
