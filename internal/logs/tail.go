package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"scott/internal/logtail"
)

const defaultFollowInterval = 250 * time.Millisecond

// TailOptions controls a local tail of a line-oriented file.
type TailOptions struct {
	Lines    int
	Follow   bool
	Interval time.Duration
}

// ReadLocal reads the monitored file directly. It is the fallback for
// `scott log show` when no server answers.
func ReadLocal(path string, maxLines int) (logtail.Snapshot, error) {
	return logtail.ReadSnapshot(path, maxLines, time.Now())
}

// Tail emits the last opts.Lines lines of path and, when opts.Follow is set,
// keeps emitting appended lines until ctx is cancelled. A file that shrinks
// is read again from the start. A missing file is waited for in follow mode.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	// A trailing partial line is shown only when not following; in follow
	// mode it is emitted whole once its newline arrives.
	lines, offset, err := readLastLines(path, opts.Lines, !opts.Follow)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultFollowInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				offset = 0
				continue
			}
			return fmt.Errorf("stat log file: %w", err)
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}
		lines, next, err := readForward(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			emit(line)
		}
	}
}

// readLastLines returns up to limit trailing lines and the offset just past
// the last complete line. With withPartial set, an unterminated final line
// counts as one of the returned lines.
func readLastLines(path string, limit int, withPartial bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	if limit > 0 {
		ring = make([]string, limit)
	}
	count, next := 0, 0
	push := func(line string) {
		if limit <= 0 {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}

	reader := bufio.NewReader(file)
	var offset int64
	for {
		chunk, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if chunk != "" && withPartial {
				push(chunk)
			}
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		push(trimNewline(chunk))
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range lines {
		lines[i] = ring[(start+i)%limit]
	}
	return lines, offset, nil
}

// readForward returns the complete lines after offset. A trailing partial
// line is left for the next read.
func readForward(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		chunk, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		lines = append(lines, trimNewline(chunk))
	}
	return lines, offset, nil
}

func trimNewline(s string) string {
	s = s[:len(s)-1]
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
