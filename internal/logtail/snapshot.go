package logtail

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// Snapshot is the state of the monitored file at one instant.
type Snapshot struct {
	Content      string     `json:"content"`
	FilePath     string     `json:"file_path"`
	FileSize     int64      `json:"file_size"`
	LastModified *time.Time `json:"last_modified"`
	Exists       bool       `json:"exists"`
	CapturedAt   time.Time  `json:"timestamp"`
}

// FileInfo is the metadata half of a Snapshot.
type FileInfo struct {
	FilePath     string     `json:"file_path"`
	FileSize     int64      `json:"file_size"`
	LastModified *time.Time `json:"last_modified"`
	Exists       bool       `json:"exists"`
}

// ReadSnapshot stats and reads path, keeping only the last maxLines lines
// when maxLines > 0. A missing file or an unreadable body is described in
// Content rather than failing; the returned error is non-nil only when the
// file could not be inspected at all or its body could not be read, so
// streaming callers can surface it.
func ReadSnapshot(path string, maxLines int, now time.Time) (Snapshot, error) {
	snap := Snapshot{FilePath: path, CapturedAt: now}

	if strings.TrimSpace(path) == "" {
		snap.Content = notFoundContent(path)
		return snap, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			snap.Content = notFoundContent(path)
			return snap, nil
		}
		snap.Content = readErrorContent(err)
		return snap, fmt.Errorf("stat log file: %w", err)
	}

	modified := info.ModTime()
	snap.Exists = true
	snap.FileSize = info.Size()
	snap.LastModified = &modified

	if info.IsDir() {
		err := fmt.Errorf("log path %q is a directory", path)
		snap.Content = readErrorContent(err)
		return snap, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		snap.Content = readErrorContent(err)
		return snap, fmt.Errorf("read log file: %w", err)
	}
	if !utf8.Valid(data) {
		snap.Content = readErrorContent(errors.New("content is not valid UTF-8"))
		return snap, nil
	}

	snap.Content = tailLines(string(data), maxLines)
	return snap, nil
}

// StatFile reports the metadata of path without reading it.
func StatFile(path string) (FileInfo, error) {
	info := FileInfo{FilePath: path}
	if strings.TrimSpace(path) == "" {
		return info, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return info, nil
		}
		return info, fmt.Errorf("stat log file: %w", err)
	}
	modified := st.ModTime()
	info.Exists = true
	info.FileSize = st.Size()
	info.LastModified = &modified
	return info, nil
}

// tailLines keeps the last n lines of content with their terminators intact.
func tailLines(content string, n int) string {
	if n <= 0 || content == "" {
		return content
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[len(lines)-n:], "")
}

func notFoundContent(path string) string {
	return "log file not found: " + path
}

func readErrorContent(err error) string {
	return "error reading log file: " + err.Error()
}
