package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/ztonys/batchctl/internal/joblog"
	"github.com/ztonys/batchctl/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()

	script := filepath.Join(dir, "worker.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	input := filepath.Join(dir, "journals.txt")
	if err := os.WriteFile(input, []byte("Nature\nCell\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	return New(Options{
		HandlePath: filepath.Join(dir, "run", "worker.pid"),
		LogDir:     filepath.Join(dir, "logs"),
		Worker: worker.Spec{
			Command:     "/bin/sh " + script,
			InputFile:   input,
			OutputDir:   filepath.Join(dir, "out"),
			ProgressLog: filepath.Join(dir, "batch_log.json"),
		},
		GracePolls:   5,
		PollInterval: 50 * time.Millisecond,
		KillWait:     100 * time.Millisecond,
		Logger:       testLogger(),
	})
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read log dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if joblog.IsLogName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

func writeFakeHandle(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		t.Fatalf("write handle: %v", err)
	}
}

func TestStartCreatesHandleAndLog(t *testing.T) {
	s := newTestSupervisor(t)
	ctx := context.Background()

	h, err := s.Start(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _, _ = s.Stop(ctx) })

	if h.PID <= 0 {
		t.Fatalf("invalid pid: %d", h.PID)
	}
	if _, err := os.Stat(s.handlePath); err != nil {
		t.Fatalf("handle file missing: %v", err)
	}
	logs := logFiles(t, s.logDir)
	if len(logs) != 1 {
		t.Fatalf("expected exactly one launch log, got %v", logs)
	}

	// handle round-trips with spec and log path
	got, err := s.Handle()
	if err != nil || got == nil {
		t.Fatalf("Handle: %v %v", got, err)
	}
	if got.PID != h.PID {
		t.Fatalf("pid mismatch: %d vs %d", got.PID, h.PID)
	}
	if got.Spec == nil || got.Spec.Command != s.spec.Command {
		t.Fatalf("spec not persisted: %+v", got.Spec)
	}
	if filepath.Base(got.LogPath) != logs[0] {
		t.Fatalf("log path mismatch: %s vs %s", got.LogPath, logs[0])
	}

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateRunning || st.PID != h.PID {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	s := newTestSupervisor(t)
	writeFakeHandle(t, s.handlePath, 12345)
	s.alive = func(*Handle) bool { return true }

	_, err := s.Start(context.Background(), 0, 0)
	var are *AlreadyRunningError
	if !errors.As(err, &are) {
		t.Fatalf("expected AlreadyRunningError, got %v", err)
	}
	if are.PID != 12345 {
		t.Fatalf("error pid = %d, want 12345", are.PID)
	}
	// no new log file may be created
	if logs := logFiles(t, s.logDir); len(logs) != 0 {
		t.Fatalf("launch log created despite running worker: %v", logs)
	}
}

func TestStartCleansStaleHandle(t *testing.T) {
	s := newTestSupervisor(t)
	writeFakeHandle(t, s.handlePath, 12345)

	staleAsked := false
	realAlive := s.alive
	s.alive = func(h *Handle) bool {
		if h.PID == 12345 {
			staleAsked = true
			return false
		}
		return realAlive(h)
	}

	h, err := s.Start(context.Background(), 2, 9)
	if err != nil {
		t.Fatalf("Start after stale handle: %v", err)
	}
	t.Cleanup(func() { _, _ = s.Stop(context.Background()) })

	if !staleAsked {
		t.Fatal("stale handle was never liveness-checked")
	}
	if h.PID == 12345 {
		t.Fatal("stale pid survived")
	}
	if h.Spec.StartLine != 2 || h.Spec.EndLine != 9 {
		t.Fatalf("line bounds not applied: %+v", h.Spec)
	}
}

func TestStartValidatesBounds(t *testing.T) {
	s := newTestSupervisor(t)
	if _, err := s.Start(context.Background(), 10, 3); err == nil {
		t.Fatal("expected validation error for inverted bounds")
	}
	if _, err := os.Stat(s.handlePath); !os.IsNotExist(err) {
		t.Fatal("handle must not exist after failed validation")
	}
}

func TestStopNoHandle(t *testing.T) {
	s := newTestSupervisor(t)
	res, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.State != StopNoHandle {
		t.Fatalf("state = %s, want %s", res.State, StopNoHandle)
	}
}

func TestStopStaleHandle(t *testing.T) {
	s := newTestSupervisor(t)
	writeFakeHandle(t, s.handlePath, 12345)
	s.alive = func(*Handle) bool { return false }

	res, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.State != StopStale {
		t.Fatalf("state = %s, want %s", res.State, StopStale)
	}
	if _, err := os.Stat(s.handlePath); !os.IsNotExist(err) {
		t.Fatal("stale handle not removed")
	}
}

func TestStopGracefulWithinWindow(t *testing.T) {
	s := newTestSupervisor(t)
	writeFakeHandle(t, s.handlePath, 12345)

	var signals []syscall.Signal
	termSent := false
	s.kill = func(pid int, sig syscall.Signal) error {
		signals = append(signals, sig)
		if sig == syscall.SIGTERM {
			termSent = true
		}
		return nil
	}
	polls := 0
	s.alive = func(*Handle) bool {
		if !termSent {
			return true
		}
		polls++
		return polls < 3 // dies on the third poll
	}
	s.sleep = func(time.Duration) {}

	res, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.State != StopGraceful {
		t.Fatalf("state = %s, want %s", res.State, StopGraceful)
	}
	if len(signals) != 1 || signals[0] != syscall.SIGTERM {
		t.Fatalf("unexpected signals: %v", signals)
	}
	if _, err := os.Stat(s.handlePath); !os.IsNotExist(err) {
		t.Fatal("handle not removed after graceful stop")
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	s := newTestSupervisor(t)
	writeFakeHandle(t, s.handlePath, 12345)

	var signals []syscall.Signal
	killed := false
	s.kill = func(pid int, sig syscall.Signal) error {
		signals = append(signals, sig)
		if sig == syscall.SIGKILL {
			killed = true
		}
		return nil
	}
	s.alive = func(*Handle) bool { return !killed }
	slept := 0
	s.sleep = func(time.Duration) { slept++ }

	res, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.State != StopForced {
		t.Fatalf("state = %s, want %s", res.State, StopForced)
	}
	if res.Polls != s.gracePolls {
		t.Fatalf("polls = %d, want %d", res.Polls, s.gracePolls)
	}
	if len(signals) != 2 || signals[0] != syscall.SIGTERM || signals[1] != syscall.SIGKILL {
		t.Fatalf("unexpected signals: %v", signals)
	}
	if _, err := os.Stat(s.handlePath); !os.IsNotExist(err) {
		t.Fatal("handle not removed after forced stop")
	}
}

func TestStopFailureRetainsHandle(t *testing.T) {
	s := newTestSupervisor(t)
	writeFakeHandle(t, s.handlePath, 12345)

	s.kill = func(int, syscall.Signal) error { return nil }
	s.alive = func(*Handle) bool { return true }
	s.sleep = func(time.Duration) {}

	res, err := s.Stop(context.Background())
	if !errors.Is(err, ErrStopFailed) {
		t.Fatalf("err = %v, want ErrStopFailed", err)
	}
	if res.State != StopFailed {
		t.Fatalf("state = %s, want %s", res.State, StopFailed)
	}
	// handle intentionally retained for operator inspection
	if _, err := os.Stat(s.handlePath); err != nil {
		t.Fatalf("handle should be retained: %v", err)
	}
}

func TestStopRealProcess(t *testing.T) {
	s := newTestSupervisor(t)
	ctx := context.Background()
	h, err := s.Start(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := s.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.State != StopGraceful && res.State != StopForced {
		t.Fatalf("unexpected state: %s", res.State)
	}
	if _, err := os.Stat(s.handlePath); !os.IsNotExist(err) {
		t.Fatal("handle not removed")
	}
	if alive := s.alive(h); alive {
		t.Fatalf("worker %d still alive after stop", h.PID)
	}
}

func TestStatusTransitions(t *testing.T) {
	s := newTestSupervisor(t)
	ctx := context.Background()

	st, err := s.Status(ctx)
	if err != nil || st.State != StateNotRunning {
		t.Fatalf("initial status: %+v %v", st, err)
	}

	// dead-but-recorded process: cleans up and reports STOPPED
	writeFakeHandle(t, s.handlePath, 12345)
	s.alive = func(*Handle) bool { return false }
	st, err = s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateStopped || st.PID != 12345 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if _, err := os.Stat(s.handlePath); !os.IsNotExist(err) {
		t.Fatal("stale handle not cleaned by status")
	}

	// subsequent call sees no handle
	st, err = s.Status(ctx)
	if err != nil || st.State != StateNotRunning {
		t.Fatalf("post-cleanup status: %+v %v", st, err)
	}
}
