package main

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"scott/internal/logtail"
	"scott/internal/testsupport"
)

type idleSink struct{}

func (idleSink) Send(context.Context, logtail.Snapshot) error { return nil }
func (idleSink) SendError(context.Context, string) error      { return nil }

func TestLogShowFromServerAndLocalFallback(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMonitoredFile("app.log", testsupport.NumberedLines(1, 20)))

	out, stderr, err := runCLI(t, []string{"log", "show", "-n", "5"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log show: %v", err)
	}
	if out != testsupport.NumberedLines(16, 20) {
		t.Fatalf("unexpected output %q", out)
	}
	if stderr != "" {
		t.Fatalf("expected no fallback note, got %q", stderr)
	}

	out, stderr, err = runCLI(t, []string{"log", "show", "-n", "2"}, "127.0.0.1:1", env.configPath)
	if err != nil {
		t.Fatalf("log show fallback: %v", err)
	}
	if out != testsupport.NumberedLines(19, 20) {
		t.Fatalf("unexpected fallback output %q", out)
	}
	requireContains(t, stderr, "server not reachable")

	out, _, err = runCLI(t, []string{"log", "show", "--json", "-n", "1"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log show --json: %v", err)
	}
	requireContains(t, out, `"content": "line 20\n"`)
}

func TestLogInfo(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMonitoredFile("app.log", "hello\n"))

	out, _, err := runCLI(t, []string{"log", "info"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log info: %v", err)
	}
	requireContains(t, out, env.cfg.LogMonitorFile())
	requireContains(t, out, "6 B")

	missing := setupCLITestEnv(t, testsupport.WithMonitoredFile("absent.log", ""))
	out, _, err = runCLI(t, []string{"log", "info", "--json"}, missing.bind, missing.configPath)
	if err != nil {
		t.Fatalf("log info missing: %v", err)
	}
	requireContains(t, out, `"exists": false`)
}

func TestLogSessionsAndStop(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"log", "sessions"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log sessions: %v", err)
	}
	requireContains(t, out, "No log sessions")

	if err := env.logs.Subscribe("cli-viewer", logtail.SubscribeOptions{}, idleSink{}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	out, _, err = runCLI(t, []string{"log", "sessions"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log sessions: %v", err)
	}
	requireContains(t, out, "cli-viewer")

	out, _, err = runCLI(t, []string{"log", "stop", "cli-viewer"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log stop: %v", err)
	}
	requireContains(t, out, "Stopped log session cli-viewer")
	if env.logs.Len() != 0 {
		t.Fatalf("expected no sessions after stop, got %d", env.logs.Len())
	}

	_, _, err = runCLI(t, []string{"log", "stop", "cli-viewer"}, env.bind, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}

	_, _, err = runCLI(t, []string{"log", "sessions"}, "127.0.0.1:1", env.configPath)
	if err == nil || !strings.Contains(err.Error(), "scott serve") {
		t.Fatalf("expected unreachable hint, got %v", err)
	}
}

func TestLogFollowPrintsAppendedLines(t *testing.T) {
	env := setupCLITestEnv(t,
		testsupport.WithMonitoredFile("app.log", testsupport.NumberedLines(1, 3)),
		testsupport.WithInterval(1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(ctx, []string{"log", "follow"}, env.bind, env.configPath, stdout, stderr)
		done <- err
	}()

	waitFor(t, 5*time.Second, func() bool { return strings.Contains(stdout.String(), "line 3\n") })
	requireContains(t, stderr.String(), "following as session")

	testsupport.AppendText(t, env.cfg.LogMonitorFile(), "line 4\n")
	waitFor(t, 5*time.Second, func() bool { return strings.Contains(stdout.String(), "line 4\n") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("follow returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
	if got := stdout.String(); got != testsupport.NumberedLines(1, 4) {
		t.Fatalf("expected each line once, got %q", got)
	}
	waitFor(t, 5*time.Second, func() bool { return env.logs.Len() == 0 })
}

func TestLogServerCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteText(t, env.cfg.ServerLogPath(), "first\nsecond\nthird\n")

	out, _, err := runCLI(t, []string{"log", "server", "-n", "2"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("log server: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAppendedLines(t *testing.T) {
	cases := []struct {
		name string
		prev []string
		next []string
		want []string
	}{
		{"first snapshot", nil, []string{"a", "b"}, []string{"a", "b"}},
		{"append", []string{"a", "b"}, []string{"a", "b", "c"}, []string{"c"}},
		{"window slid", []string{"a", "b", "c"}, []string{"b", "c", "d", "e"}, []string{"d", "e"}},
		{"unchanged", []string{"a", "b"}, []string{"a", "b"}, []string{}},
		{"replaced", []string{"a", "b"}, []string{"x", "y"}, []string{"x", "y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := appendedLines(tc.prev, tc.next)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFollowPrinterKeepsRepeatedAppendedLines(t *testing.T) {
	var out bytes.Buffer
	printer := &followPrinter{out: &out}

	snaps := []logtail.Snapshot{
		{Content: "tick\ntick\n", FileSize: 10, Exists: true},
		{Content: "tick\ntick\n", FileSize: 15, Exists: true},
		{Content: "tick\ntick\n", FileSize: 25, Exists: true},
	}
	for _, snap := range snaps {
		if err := printer.print(snap); err != nil {
			t.Fatalf("print: %v", err)
		}
	}
	if got := out.String(); got != strings.Repeat("tick\n", 5) {
		t.Fatalf("expected every appended tick, got %q", got)
	}

	// Growth beyond the window falls back to the overlap search.
	out.Reset()
	if err := printer.print(logtail.Snapshot{Content: "tick\nboom\n", FileSize: 100, Exists: true}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if got := out.String(); got != "boom\n" {
		t.Fatalf("expected overlap fallback, got %q", got)
	}
}
