package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scott/internal/api"
	"scott/internal/logs"
	"scott/internal/logtail"
)

func newLogCommand(ctx *commandContext) *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the monitored log file",
	}

	logCmd.AddCommand(newLogShowCommand(ctx))
	logCmd.AddCommand(newLogInfoCommand(ctx))
	logCmd.AddCommand(newLogFollowCommand(ctx))
	logCmd.AddCommand(newLogSessionsCommand(ctx))
	logCmd.AddCommand(newLogStopCommand(ctx))
	logCmd.AddCommand(newLogServerCommand(ctx))

	return logCmd
}

func newLogShowCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var local bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the tail of the monitored file",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, source, err := fetchSnapshot(cmd, ctx, lines, local)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, snap)
			}
			if source != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", source)
			}
			return writeContent(cmd.OutOrStdout(), snap.Content)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", -1, "Lines to show (0 for the whole file; default from config)")
	cmd.Flags().BoolVar(&local, "local", false, "Read the file directly instead of asking the server")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the snapshot as JSON")
	return cmd
}

// fetchSnapshot asks the server for a snapshot and falls back to reading the
// file directly when no server answers. source is a note for the user when
// the fallback was taken.
func fetchSnapshot(cmd *cobra.Command, ctx *commandContext, lines int, local bool) (logtail.Snapshot, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return logtail.Snapshot{}, "", err
	}
	maxLines := cfg.LogMonitorMaxLines()
	if lines >= 0 {
		maxLines = lines
	}

	if !local {
		client, err := ctx.logClient()
		if err != nil {
			return logtail.Snapshot{}, "", err
		}
		snap, err := client.Snapshot(cmd.Context(), logs.StreamQuery{MaxLines: optionalFlag(lines)})
		if err == nil {
			return snap, "", nil
		}
		if !logs.IsAPIUnavailable(err) {
			return logtail.Snapshot{}, "", err
		}
	}

	snap, err := logs.ReadLocal(cfg.LogMonitorFile(), maxLines)
	if err != nil {
		return logtail.Snapshot{}, "", err
	}
	source := ""
	if !local {
		source = "server not reachable; read " + cfg.LogMonitorFile() + " directly"
	}
	return snap, source, nil
}

func newLogInfoCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show size and modification time of the monitored file",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := fetchInfo(cmd, ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, info)
			}
			modified := "-"
			if info.LastModified != nil {
				modified = info.LastModified.Local().Format(time.RFC3339)
			}
			rows := [][]string{
				{"Path", info.FilePath},
				{"Exists", yesNo(info.Exists)},
				{"Size", humanBytes(info.FileSize)},
				{"Modified", modified},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the info as JSON")
	return cmd
}

func fetchInfo(cmd *cobra.Command, ctx *commandContext) (logtail.FileInfo, error) {
	client, err := ctx.logClient()
	if err != nil {
		return logtail.FileInfo{}, err
	}
	info, err := client.Info(cmd.Context())
	if err == nil || !logs.IsAPIUnavailable(err) {
		return info, err
	}
	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return logtail.FileInfo{}, cfgErr
	}
	return logtail.StatFile(cfg.LogMonitorFile())
}

func newLogFollowCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var interval int
	var full bool

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Stream changes to the monitored file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.logClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printer := &followPrinter{out: out, full: full}
			query := logs.StreamQuery{MaxLines: optionalFlag(lines), Interval: optionalFlag(interval)}

			err = client.Follow(cmd.Context(), query, func(ev logs.StreamEvent) error {
				switch ev.Name {
				case api.EventSubscribed:
					fmt.Fprintf(cmd.ErrOrStderr(), "following as session %s\n", ev.ID)
				case api.EventLogError:
					fmt.Fprintf(cmd.ErrOrStderr(), "log error: %s\n", ev.Error)
				default:
					return printer.print(ev.Snapshot)
				}
				return nil
			})
			if err == nil || !logs.IsAPIUnavailable(err) {
				return err
			}

			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "server not reachable; following %s directly\n", cfg.LogMonitorFile())
			tailLines := cfg.LogMonitorMaxLines()
			if lines >= 0 {
				tailLines = lines
			}
			pollEvery := cfg.LogMonitorInterval()
			if interval > 0 {
				pollEvery = time.Duration(interval) * time.Second
			}
			return logs.Tail(cmd.Context(), cfg.LogMonitorFile(), logs.TailOptions{
				Lines:    tailLines,
				Follow:   true,
				Interval: pollEvery,
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", -1, "Lines per snapshot (default from config)")
	cmd.Flags().IntVar(&interval, "interval", -1, "Seconds between checks (default from config)")
	cmd.Flags().BoolVar(&full, "full", false, "Print every snapshot in full instead of only new lines")
	return cmd
}

// followPrinter turns successive tail snapshots into appended output.
type followPrinter struct {
	out      io.Writer
	full     bool
	prev     []string
	prevSize int64
	count    int
}

func (p *followPrinter) print(snap logtail.Snapshot) error {
	next := splitLines(snap.Content)
	defer func() {
		p.prev = next
		p.prevSize = snap.FileSize
		p.count++
	}()
	if p.full {
		if p.count > 0 {
			fmt.Fprintf(p.out, "--- %s (%s) ---\n", snap.CapturedAt.Local().Format(time.TimeOnly), humanBytes(snap.FileSize))
		}
		return writeContent(p.out, snap.Content)
	}
	// Content is the file's tail, so growth that fits in the window is
	// exactly its last delta bytes.
	if p.count > 0 && snap.Exists {
		if delta := snap.FileSize - p.prevSize; delta > 0 && delta <= int64(len(snap.Content)) {
			return writeContent(p.out, snap.Content[len(snap.Content)-int(delta):])
		}
	}
	for _, line := range appendedLines(p.prev, next) {
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

// appendedLines returns the lines of next that follow its overlap with the
// end of prev. Without an overlap every line of next is new.
func appendedLines(prev, next []string) []string {
	limit := min(len(prev), len(next))
	for k := limit; k > 0; k-- {
		if equalLines(prev[len(prev)-k:], next[:k]) {
			return next[k:]
		}
	}
	return next
}

func equalLines(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func newLogSessionsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live log sessions on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.logClient()
			if err != nil {
				return err
			}
			sessions, err := client.Sessions(cmd.Context())
			if err != nil {
				return serverError(err, ctx.bind())
			}
			if jsonOutput {
				return writeJSON(cmd, sessions)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No log sessions")
				return nil
			}
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					s.ID,
					s.State,
					strconv.Itoa(s.MaxLines),
					strconv.FormatFloat(s.IntervalSeconds, 'f', -1, 64) + "s",
					strconv.FormatInt(s.Emitted, 10),
					humanize.Time(s.StartedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "State", "Max Lines", "Interval", "Emitted", "Started"},
				rows,
				2, 3, 4,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print sessions as JSON")
	return cmd
}

func newLogStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a live log session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.logClient()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if err := client.StopSession(cmd.Context(), id); err != nil {
				return serverError(err, ctx.bind())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped log session %s\n", id)
			return nil
		},
	}
}

func newLogServerCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Print the server's own log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return logs.Tail(cmd.Context(), cfg.ServerLogPath(), logs.TailOptions{
				Lines:  lines,
				Follow: follow,
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}

func serverError(err error, bind string) error {
	if logs.IsAPIUnavailable(err) {
		return fmt.Errorf("server not reachable at %s; start it with `scott serve`", bind)
	}
	var status *logs.StatusError
	if errors.As(err, &status) && status.Message != "" {
		return errors.New(status.Message)
	}
	return err
}

// optionalFlag maps the negative "unset" flag value to nil.
func optionalFlag(value int) *int {
	if value < 0 {
		return nil
	}
	return &value
}
