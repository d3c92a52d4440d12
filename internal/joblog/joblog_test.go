package joblog_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ztonys/batchctl/internal/joblog"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFileNamePattern(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local)
	name := joblog.FileName(ts)
	if name != "batch_download_20260314_150926.log" {
		t.Fatalf("unexpected name: %s", name)
	}
	if !joblog.IsLogName(name) {
		t.Fatalf("generated name must match pattern: %s", name)
	}
}

func TestIsLogNameRejectsStrays(t *testing.T) {
	for _, name := range []string{
		"batch_download_.log",
		"batch_download_20260314.log",
		"batch_download_20260314_150926.log.1",
		"other_20260314_150926.log",
		"batch_download_2026zz14_150926.log",
	} {
		if joblog.IsLogName(name) {
			t.Errorf("%s should not match", name)
		}
	}
}

func TestLatestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"batch_download_20260101_000000.log",
		"batch_download_20260301_120000.log",
		"batch_download_20251231_235959.log",
		"unrelated.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got, err := joblog.Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if filepath.Base(got) != "batch_download_20260301_120000.log" {
		t.Fatalf("Latest = %s", got)
	}
}

func TestLatestEmpty(t *testing.T) {
	if _, err := joblog.Latest(t.TempDir()); err != joblog.ErrNoLogs {
		t.Fatalf("expected ErrNoLogs, got %v", err)
	}
	if _, err := joblog.Latest(filepath.Join(t.TempDir(), "absent")); err != joblog.ErrNoLogs {
		t.Fatalf("expected ErrNoLogs for missing dir, got %v", err)
	}
}

func TestTailLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines, err := joblog.TailLines(path, 2)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "c" || lines[1] != "d" {
		t.Fatalf("unexpected lines: %#v", lines)
	}

	// window larger than file
	lines, err = joblog.TailLines(path, 50)
	if err != nil || len(lines) != 4 {
		t.Fatalf("full window: %v %v", lines, err)
	}

	// missing file is not an error
	lines, err = joblog.TailLines(filepath.Join(dir, "absent.log"), 10)
	if err != nil || lines != nil {
		t.Fatalf("missing file: %v %v", lines, err)
	}
}

func TestFollowStreamsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- joblog.Follow(ctx, path, buf) }()

	time.Sleep(400 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("new line\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "new line") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Follow returned %v, want context.Canceled", err)
	}
	out := buf.String()
	if strings.Contains(out, "old") {
		t.Fatalf("Follow must start at end of file, got %q", out)
	}
	if !strings.Contains(out, "new line") {
		t.Fatalf("appended content not streamed: %q", out)
	}
}
