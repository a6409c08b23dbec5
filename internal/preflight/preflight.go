package preflight

import (
	"context"
	"path/filepath"

	"scott/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Required bool
}

// RunAll executes the startup checks for cfg. Required checks must pass
// before the server starts; the rest are informational.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		required(CheckDirectoryAccess("Database directory", filepath.Dir(cfg.Database.Path))),
		required(CheckDirectoryAccess("Log directory", cfg.Logging.Dir)),
		CheckMonitoredFile(cfg.LogMonitorFile()),
	}
	if ctx.Err() != nil {
		return results
	}
	results = append(results, required(CheckBindAvailable(cfg.Server.Bind)))
	return results
}

// Failures returns the required checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func required(r Result) Result {
	r.Required = true
	return r
}
