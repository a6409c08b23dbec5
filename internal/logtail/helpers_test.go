package logtail

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

type recordingSink struct {
	snaps chan Snapshot
	errs  chan string

	endOnce sync.Once
	ended   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		snaps: make(chan Snapshot, 16),
		errs:  make(chan string, 16),
		ended: make(chan struct{}),
	}
}

func (s *recordingSink) Send(ctx context.Context, snap Snapshot) error {
	select {
	case s.snaps <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *recordingSink) SendError(ctx context.Context, message string) error {
	select {
	case s.errs <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *recordingSink) SessionEnded(string) {
	s.endOnce.Do(func() { close(s.ended) })
}

func (s *recordingSink) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case snap := <-s.snaps:
		return snap
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func (s *recordingSink) nextError(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-s.errs:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error event")
		return ""
	}
}

func (s *recordingSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case snap := <-s.snaps:
		t.Fatalf("unexpected snapshot of size %d", snap.FileSize)
	case msg := <-s.errs:
		t.Fatalf("unexpected error event %q", msg)
	default:
	}
}

func (s *recordingSink) waitEnded(t *testing.T) {
	t.Helper()
	select {
	case <-s.ended:
	case <-time.After(waitTimeout):
		t.Fatal("session did not end")
	}
}

// failingSink rejects every delivery, like a disconnected client.
type failingSink struct {
	ended chan struct{}
}

func (s *failingSink) Send(context.Context, Snapshot) error { return errors.New("client gone") }

func (s *failingSink) SendError(context.Context, string) error { return errors.New("client gone") }

func (s *failingSink) SessionEnded(string) { close(s.ended) }

// stuckSink blocks in Send until released, ignoring cancellation.
type stuckSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stuckSink) Send(context.Context, Snapshot) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func (s *stuckSink) SendError(context.Context, string) error { return nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func appendToFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("append: %v", err)
	}
}

type stubSettings struct {
	file        string
	maxLines    int
	interval    time.Duration
	stopTimeout time.Duration
}

func (s stubSettings) LogMonitorFile() string { return s.file }
func (s stubSettings) LogMonitorMaxLines() int { return s.maxLines }
func (s stubSettings) LogMonitorInterval() time.Duration { return s.interval }
func (s stubSettings) LogMonitorStopTimeout() time.Duration { return s.stopTimeout }
