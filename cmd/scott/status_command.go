package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scott/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, filesystem and server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configDetail := ctx.configPath
			if !ctx.configSeen {
				configDetail += " (not found; defaults in use)"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, configDetail, colorize),
				renderStatusLine("Bind", statusInfo, ctx.bind(), colorize),
				renderStatusLine("Database", statusInfo, cfg.Database.Path, colorize),
				renderStatusLine("Server log", statusInfo, cfg.ServerLogPath(), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			checks := []preflight.Result{
				preflight.CheckDirectoryAccess("Database directory", filepath.Dir(cfg.Database.Path)),
				preflight.CheckDirectoryAccess("Log directory", cfg.Logging.Dir),
				preflight.CheckMonitoredFile(cfg.LogMonitorFile()),
			}
			for _, check := range checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Server", colorize)...)
			server := preflight.CheckServer(cmd.Context(), ctx.bind())
			if !server.Passed {
				lines = append(lines, renderStatusLine(server.Name, statusWarn, server.Detail, colorize))
			} else {
				lines = append(lines, renderStatusLine(server.Name, statusOK, server.Detail, colorize))
				if client, err := ctx.logClient(); err == nil {
					if status, err := client.Status(cmd.Context()); err == nil {
						dbKind, dbDetail := statusOK, "reachable"
						if !status.DatabaseOK {
							dbKind, dbDetail = statusError, status.DatabaseDetail
						}
						lines = append(lines,
							renderStatusLine("PID", statusInfo, fmt.Sprint(status.PID), colorize),
							renderStatusLine("Database", dbKind, dbDetail, colorize),
							renderStatusLine("Monitored file", statusInfo, status.MonitoredFile, colorize),
						)
					}
				}
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}
