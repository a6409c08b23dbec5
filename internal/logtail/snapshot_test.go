package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func numberedLines(from, to int) string {
	var b strings.Builder
	for i := from; i <= to; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	return b.String()
}

func TestReadSnapshotKeepsLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(numberedLines(1, 1500)), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	snap, err := ReadSnapshot(path, 1000, now)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if snap.Content != numberedLines(501, 1500) {
		t.Fatalf("expected lines 501..1500, got %d bytes starting %q", len(snap.Content), snap.Content[:10])
	}
	if !snap.Exists || snap.FileSize != int64(len(numberedLines(1, 1500))) {
		t.Fatalf("unexpected metadata: exists=%v size=%d", snap.Exists, snap.FileSize)
	}
	if snap.LastModified == nil {
		t.Fatal("expected last modified time")
	}
	if !snap.CapturedAt.Equal(now) || snap.FilePath != path {
		t.Fatalf("unexpected capture fields %+v", snap)
	}
}

func TestReadSnapshotIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(numberedLines(1, 20)), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	now := time.Unix(1700000000, 0).UTC()
	first, err := ReadSnapshot(path, 5, now)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := ReadSnapshot(path, 5, now)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if first.Content != second.Content || first.FileSize != second.FileSize || !first.LastModified.Equal(*second.LastModified) {
		t.Fatalf("repeated reads differ: %+v vs %+v", first, second)
	}
}

func TestReadSnapshotFileStates(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	t.Run("missing", func(t *testing.T) {
		path := filepath.Join(dir, "absent.log")
		snap, err := ReadSnapshot(path, 10, now)
		if err != nil {
			t.Fatalf("ReadSnapshot: %v", err)
		}
		if snap.Exists || snap.FileSize != 0 || snap.LastModified != nil {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		if snap.Content != "log file not found: "+path {
			t.Fatalf("unexpected content %q", snap.Content)
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		snap, err := ReadSnapshot("", 10, now)
		if err != nil || snap.Exists {
			t.Fatalf("expected not-found snapshot, got %+v err=%v", snap, err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.log")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		snap, err := ReadSnapshot(path, 10, now)
		if err != nil || !snap.Exists || snap.Content != "" || snap.FileSize != 0 {
			t.Fatalf("unexpected snapshot %+v err=%v", snap, err)
		}
	})

	t.Run("fewer lines than cap", func(t *testing.T) {
		path := filepath.Join(dir, "short.log")
		body := "alpha\r\nbeta\r\ngamma"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		snap, err := ReadSnapshot(path, 10, now)
		if err != nil || snap.Content != body {
			t.Fatalf("expected content unchanged, got %q err=%v", snap.Content, err)
		}
	})

	t.Run("terminators preserved on truncation", func(t *testing.T) {
		path := filepath.Join(dir, "crlf.log")
		if err := os.WriteFile(path, []byte("one\r\ntwo\r\nthree"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		snap, err := ReadSnapshot(path, 2, now)
		if err != nil || snap.Content != "two\r\nthree" {
			t.Fatalf("unexpected content %q err=%v", snap.Content, err)
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		path := filepath.Join(dir, "all.log")
		body := numberedLines(1, 50)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		snap, err := ReadSnapshot(path, 0, now)
		if err != nil || snap.Content != body {
			t.Fatalf("expected full content, err=%v", err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		path := filepath.Join(dir, "binary.log")
		if err := os.WriteFile(path, []byte{0xff, 0xfe, 'a', '\n'}, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		snap, err := ReadSnapshot(path, 10, now)
		if err != nil {
			t.Fatalf("invalid text should be data, got %v", err)
		}
		if !strings.HasPrefix(snap.Content, "error reading log file: ") {
			t.Fatalf("unexpected content %q", snap.Content)
		}
		if !snap.Exists || snap.FileSize != 4 || snap.LastModified == nil {
			t.Fatalf("expected stat fields kept, got %+v", snap)
		}
	})

	t.Run("directory", func(t *testing.T) {
		snap, err := ReadSnapshot(dir, 10, now)
		if err == nil {
			t.Fatal("expected error for directory")
		}
		if !strings.HasPrefix(snap.Content, "error reading log file: ") {
			t.Fatalf("unexpected content %q", snap.Content)
		}
	})
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	info, err := StatFile(path)
	if err != nil || info.Exists {
		t.Fatalf("expected missing file, got %+v err=%v", info, err)
	}
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err = StatFile(path)
	if err != nil || !info.Exists || info.FileSize != 6 || info.LastModified == nil {
		t.Fatalf("unexpected info %+v err=%v", info, err)
	}
}

func TestChangedComparesSizeOnly(t *testing.T) {
	if Changed(100, Snapshot{FileSize: 100, Content: "different"}) {
		t.Fatal("equal sizes must not report a change")
	}
	if !Changed(100, Snapshot{FileSize: 140}) {
		t.Fatal("growth must report a change")
	}
	if !Changed(100, Snapshot{FileSize: 0}) {
		t.Fatal("truncation must report a change")
	}
}

func TestChangedMissesTruncateThenRegrowToSameSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("aaaa\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	before, err := ReadSnapshot(path, 0, time.Now())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := os.WriteFile(path, []byte("bbbb\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	after, err := ReadSnapshot(path, 0, time.Now())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if after.Content == before.Content {
		t.Fatal("expected content to differ")
	}
	if Changed(before.FileSize, after) {
		t.Fatal("same-size rewrite is expected to go unnoticed")
	}
}
