// Package config loads, normalizes, and validates scott configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCOTT_LOG_MONITOR_FILE. The Config type also satisfies the settings
// interface the log tail service consumes, so the server wires it straight
// through.
package config
