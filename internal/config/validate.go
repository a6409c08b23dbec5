package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogMonitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q: %w", c.Server.Bind, err)
	}
	return nil
}

func (c *Config) validateLogMonitor() error {
	if c.LogMonitor.MaxLines < 0 {
		return errors.New("log_monitor.max_lines must be 0 (unlimited) or positive")
	}
	if c.LogMonitor.UpdateInterval < 1 || c.LogMonitor.UpdateInterval > maxUpdateInterval {
		return fmt.Errorf("log_monitor.update_interval must be between 1 and %d seconds", maxUpdateInterval)
	}
	if c.LogMonitor.StopTimeoutMS < 0 {
		return errors.New("log_monitor.stop_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
