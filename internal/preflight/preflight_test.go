package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scott/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckMonitoredFile(t *testing.T) {
	dir := t.TempDir()

	missing := CheckMonitoredFile(filepath.Join(dir, "later.log"))
	if !missing.Passed || !strings.Contains(missing.Detail, "not created yet") {
		t.Fatalf("expected missing file to pass, got %+v", missing)
	}

	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	present := CheckMonitoredFile(path)
	if !present.Passed || !strings.Contains(present.Detail, "6 bytes") {
		t.Fatalf("expected readable file to pass, got %+v", present)
	}

	if res := CheckMonitoredFile(dir); res.Passed {
		t.Fatal("expected directory to fail")
	}
	if res := CheckMonitoredFile(""); res.Passed {
		t.Fatal("expected empty path to fail")
	}
}

func TestCheckBindAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if res := CheckBindAvailable(ln.Addr().String()); res.Passed {
		t.Fatalf("expected busy address to fail, got %+v", res)
	}
	if res := CheckBindAvailable("127.0.0.1:0"); !res.Passed {
		t.Fatalf("expected ephemeral port to pass, got %+v", res)
	}
}

func TestRunAllAndFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	if failed := Failures(results); len(failed) != 0 {
		t.Fatalf("expected no required failures, got %+v", failed)
	}

	cfg.Logging.Dir = filepath.Join(t.TempDir(), "missing")
	failed := Failures(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("expected log directory failure, got %+v", failed)
	}
}

func TestCheckServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/log/sessions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","data":[{"id":"a"},{"id":"b"}]}`))
	}))
	defer srv.Close()

	res := CheckServer(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if !res.Passed || !strings.Contains(res.Detail, "2 log sessions") {
		t.Fatalf("expected running server, got %+v", res)
	}

	down := CheckServer(context.Background(), "127.0.0.1:1")
	if down.Passed || !strings.Contains(down.Detail, "not running") {
		t.Fatalf("expected not running, got %+v", down)
	}
}
