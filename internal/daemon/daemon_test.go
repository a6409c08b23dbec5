package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"scott/internal/api"
	"scott/internal/daemon"
	"scott/internal/logging"
	"scott/internal/logtail"
	"scott/internal/testsupport"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *logtail.Service, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logs := logtail.NewService(cfg)
	d, err := daemon.New(cfg, store, logs, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, logs, cfg.LockPath()
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.DatabaseOK {
		t.Fatalf("expected running daemon with healthy database, got %+v", status)
	}

	resp, err := http.Get("http://" + d.Address() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	var env struct {
		Code int              `json:"code"`
		Data api.DaemonStatus `json:"data"`
	}
	err = json.NewDecoder(resp.Body).Decode(&env)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if env.Code != http.StatusOK || !env.Data.Running {
		t.Fatalf("unexpected status payload %+v", env)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRefusesHeldLock(t *testing.T) {
	d, _, lockPath := newDaemon(t)

	other := flock.New(lockPath)
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail while another instance holds the lock")
	}
}

type blockingSink struct{}

func (blockingSink) Send(ctx context.Context, _ logtail.Snapshot) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingSink) SendError(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDaemonStopEndsLogSessions(t *testing.T) {
	d, logs, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := logs.Subscribe("held", logtail.SubscribeOptions{}, blockingSink{}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one session, got %d", logs.Len())
	}

	d.Stop()
	if logs.Len() != 0 {
		t.Fatalf("expected sessions stopped with the daemon, got %d", logs.Len())
	}
}
