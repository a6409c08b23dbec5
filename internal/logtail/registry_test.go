package logtail

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

func newTestLog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestSessionEmitsFirstSnapshotThenOnlyAfterGrowth(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "boot\n")
	clk := testclock.NewClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	metrics := NewMetrics(prometheus.NewRegistry())
	reg := NewRegistry(RegistryConfig{Path: path, Clock: clk, Metrics: metrics})
	defer reg.Close()

	sink := newRecordingSink()
	if err := reg.Start("sub", SessionOptions{MaxLines: 10, Interval: time.Second}, sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := sink.next(t)
	if first.Content != "boot\n" || first.FileSize != 5 {
		t.Fatalf("unexpected first snapshot %+v", first)
	}

	// t=1s: nothing changed.
	if err := clk.WaitAdvance(time.Second, waitTimeout, 1); err != nil {
		t.Fatalf("advance to 1s: %v", err)
	}
	// t=1.5s: the 1s poll has finished once the loop is waiting again.
	if err := clk.WaitAdvance(500*time.Millisecond, waitTimeout, 1); err != nil {
		t.Fatalf("advance to 1.5s: %v", err)
	}
	sink.expectNone(t)

	appendToFile(t, path, "x")

	// t=2s: the append is seen.
	if err := clk.WaitAdvance(500*time.Millisecond, waitTimeout, 1); err != nil {
		t.Fatalf("advance to 2s: %v", err)
	}
	second := sink.next(t)
	if second.FileSize != 6 || second.Content != "boot\nx" {
		t.Fatalf("unexpected second snapshot %+v", second)
	}

	// t=3s: quiet again.
	if err := clk.WaitAdvance(time.Second, waitTimeout, 1); err != nil {
		t.Fatalf("advance to 3s: %v", err)
	}
	if err := clk.WaitAdvance(time.Millisecond, waitTimeout, 1); err != nil {
		t.Fatalf("wait for 3s poll: %v", err)
	}
	sink.expectNone(t)

	if got := testutil.ToFloat64(metrics.SnapshotsEmitted); got != 2 {
		t.Fatalf("expected 2 emitted snapshots, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}
	infos := reg.Sessions()
	if len(infos) != 1 || infos[0].Emitted != 2 || infos[0].LastSize != 6 || infos[0].State != "running" {
		t.Fatalf("unexpected sessions %+v", infos)
	}
}

func TestStartReplacesExistingSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "line\n")
	reg := NewRegistry(RegistryConfig{Path: path})
	defer reg.Close()

	opts := SessionOptions{Interval: time.Hour}
	oldSink := newRecordingSink()
	if err := reg.Start("dup", opts, oldSink); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	oldSink.next(t)

	newSink := newRecordingSink()
	if err := reg.Start("dup", opts, newSink); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	oldSink.waitEnded(t)
	newSink.next(t)

	if reg.Len() != 1 {
		t.Fatalf("expected one live session, got %d", reg.Len())
	}
	select {
	case <-newSink.ended:
		t.Fatal("replacement session should still be running")
	default:
	}
}

func TestStopUnknownSubscriberIsNoop(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Path: "unused.log"})
	defer reg.Close()

	if reg.Stop("ghost") {
		t.Fatal("expected Stop to report no session")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestStopEndsSessionAndRemovesEntry(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "line\n")
	reg := NewRegistry(RegistryConfig{Path: path})
	defer reg.Close()

	sink := newRecordingSink()
	if err := reg.Start("s1", SessionOptions{Interval: time.Hour}, sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sink.next(t)

	started := time.Now()
	if !reg.Stop("s1") {
		t.Fatal("expected Stop to find the session")
	}
	if elapsed := time.Since(started); elapsed >= DefaultStopTimeout {
		t.Fatalf("stop of an idle session took %s", elapsed)
	}
	sink.waitEnded(t)
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	if reg.Stop("s1") {
		t.Fatal("second Stop should be a no-op")
	}
}

func TestDeliveryFailureRemovesEntry(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "line\n")
	metrics := NewMetrics(prometheus.NewRegistry())
	reg := NewRegistry(RegistryConfig{Path: path, Metrics: metrics})
	defer reg.Close()

	sink := &failingSink{ended: make(chan struct{})}
	if err := reg.Start("gone", SessionOptions{Interval: time.Second}, sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-sink.ended:
	case <-time.After(waitTimeout):
		t.Fatal("session did not end after failed delivery")
	}
	waitFor(t, "registry to empty", func() bool { return reg.Len() == 0 })

	if got := testutil.ToFloat64(metrics.DeliveryErrors); got != 1 {
		t.Fatalf("expected one delivery error, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != 0 {
		t.Fatalf("expected no active sessions, got %v", got)
	}
}

func TestStopGivesUpOnStuckSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "line\n")
	metrics := NewMetrics(prometheus.NewRegistry())
	reg := NewRegistry(RegistryConfig{Path: path, Metrics: metrics, StopTimeout: 30 * time.Millisecond})
	defer reg.Close()

	sink := &stuckSink{entered: make(chan struct{}), release: make(chan struct{})}
	if err := reg.Start("slow", SessionOptions{Interval: time.Second}, sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-sink.entered:
	case <-time.After(waitTimeout):
		t.Fatal("sink never entered Send")
	}

	started := time.Now()
	if !reg.Stop("slow") {
		t.Fatal("expected Stop to find the session")
	}
	elapsed := time.Since(started)
	if elapsed < 30*time.Millisecond || elapsed > time.Second {
		t.Fatalf("unexpected stop wait %s", elapsed)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected entry removed after timeout, got %d", reg.Len())
	}
	if got := testutil.ToFloat64(metrics.StopTimeouts); got != 1 {
		t.Fatalf("expected one stop timeout, got %v", got)
	}

	close(sink.release)
}

func TestCaptureErrorsAreReportedEveryPollAndPollingContinues(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	clk := testclock.NewClock(time.Unix(0, 0))
	reg := NewRegistry(RegistryConfig{Path: path, Clock: clk})
	defer reg.Close()

	sink := newRecordingSink()
	if err := reg.Start("err", SessionOptions{Interval: time.Second}, sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := sink.nextError(t)
	if first == "" {
		t.Fatal("expected error message")
	}

	// The same failure is reported again on each later poll.
	for i := 0; i < 2; i++ {
		if err := clk.WaitAdvance(time.Second, waitTimeout, 1); err != nil {
			t.Fatalf("advance: %v", err)
		}
		if msg := sink.nextError(t); msg != first {
			t.Fatalf("poll %d: expected repeated error %q, got %q", i+2, first, msg)
		}
	}
	sink.expectNone(t)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("recovered\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := clk.WaitAdvance(time.Second, waitTimeout, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	snap := sink.next(t)
	if snap.Content != "recovered\n" {
		t.Fatalf("unexpected content %q", snap.Content)
	}
}

func TestStartValidatesArguments(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Path: "unused.log"})
	defer reg.Close()

	sink := newRecordingSink()
	cases := map[string]struct {
		id   string
		opts SessionOptions
		sink Sink
	}{
		"empty id":      {id: " ", opts: SessionOptions{Interval: time.Second}, sink: sink},
		"zero interval": {id: "a", opts: SessionOptions{}, sink: sink},
		"negative cap":  {id: "a", opts: SessionOptions{MaxLines: -1, Interval: time.Second}, sink: sink},
		"nil sink":      {id: "a", opts: SessionOptions{Interval: time.Second}},
	}
	for name, tc := range cases {
		if err := reg.Start(tc.id, tc.opts, tc.sink); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("%s: expected ErrInvalidOptions, got %v", name, err)
		}
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", reg.Len())
	}
}

func TestCloseStopsEverythingAndRejectsStart(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "line\n")
	reg := NewRegistry(RegistryConfig{Path: path})

	sinks := make([]*recordingSink, 5)
	for i := range sinks {
		sinks[i] = newRecordingSink()
		if err := reg.Start(fmt.Sprintf("s%d", i), SessionOptions{Interval: time.Hour}, sinks[i]); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
	}
	if reg.Len() != len(sinks) {
		t.Fatalf("expected %d sessions, got %d", len(sinks), reg.Len())
	}

	reg.Close()
	for _, sink := range sinks {
		sink.waitEnded(t)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry after Close, got %d", reg.Len())
	}
	if err := reg.Start("late", SessionOptions{Interval: time.Second}, newRecordingSink()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestConcurrentStartStopKeepsOneSessionPerID(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := newTestLog(t, "line\n")
	reg := NewRegistry(RegistryConfig{Path: path})
	defer reg.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				reg.Stop("shared")
				return
			}
			if err := reg.Start("shared", SessionOptions{Interval: time.Hour}, newRecordingSink()); err != nil {
				t.Errorf("Start: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := reg.Len(); n > 1 {
		t.Fatalf("expected at most one session, got %d", n)
	}
	reg.StopAll()
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}
