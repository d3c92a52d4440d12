// Package supervisor owns the lifecycle of the single external
// batch-download worker: detached launch with a per-launch log file,
// liveness-checked status, and graceful stop with escalation to SIGKILL.
// All state lives in the filesystem; independent command invocations
// coordinate only through the handle file.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/ztonys/batchctl/internal/detector"
	"github.com/ztonys/batchctl/internal/env"
	"github.com/ztonys/batchctl/internal/history"
	"github.com/ztonys/batchctl/internal/joblog"
	"github.com/ztonys/batchctl/internal/metrics"
	"github.com/ztonys/batchctl/internal/worker"
)

const (
	DefaultGracePolls   = 30
	DefaultPollInterval = time.Second
	DefaultKillWait     = 2 * time.Second
)

// AlreadyRunningError reports a launch attempt while a live worker holds
// the handle. The operator must stop it first.
type AlreadyRunningError struct{ PID int }

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("worker already running with PID %d; stop it first with 'batchctl stop' (or kill the process manually and remove the handle file)", e.PID)
}

// Options configures a Supervisor.
type Options struct {
	HandlePath   string
	LogDir       string
	Worker       worker.Spec
	Env          *env.Env
	GracePolls   int           // liveness polls after SIGTERM (default 30)
	PollInterval time.Duration // delay between polls (default 1s)
	KillWait     time.Duration // wait after SIGKILL before the final check (default 2s)
	Logger       *slog.Logger
	History      history.Sink // optional audit trail
}

// Supervisor supervises the external worker through the handle file.
type Supervisor struct {
	handlePath   string
	logDir       string
	spec         worker.Spec
	envM         *env.Env
	gracePolls   int
	pollInterval time.Duration
	killWait     time.Duration
	logger       *slog.Logger
	hist         history.Sink

	// injected for tests
	alive func(h *Handle) bool
	kill  func(pid int, sig syscall.Signal) error
	sleep func(d time.Duration)
	now   func() time.Time
}

func New(opts Options) *Supervisor {
	s := &Supervisor{
		handlePath:   opts.HandlePath,
		logDir:       opts.LogDir,
		spec:         opts.Worker,
		envM:         opts.Env,
		gracePolls:   opts.GracePolls,
		pollInterval: opts.PollInterval,
		killWait:     opts.KillWait,
		logger:       opts.Logger,
		hist:         opts.History,
	}
	if s.gracePolls <= 0 {
		s.gracePolls = DefaultGracePolls
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.killWait <= 0 {
		s.killWait = DefaultKillWait
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.envM == nil {
		s.envM = env.New()
	}
	s.alive = func(h *Handle) bool {
		ok, err := detector.StartTimeDetector{PID: h.PID, StartUnix: h.StartUnix}.Alive()
		return err == nil && ok
	}
	s.kill = func(pid int, sig syscall.Signal) error {
		// the worker is a session leader, signal its whole group
		err := syscall.Kill(-pid, sig)
		if err == syscall.ESRCH {
			return syscall.Kill(pid, sig)
		}
		return err
	}
	s.sleep = time.Sleep
	s.now = time.Now
	return s
}

// Handle returns the current handle, or nil when no handle file exists.
func (s *Supervisor) Handle() (*Handle, error) {
	h, err := ReadHandle(s.handlePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// Start launches the worker detached and persists its handle. The optional
// line bounds override the configured defaults. A live handle is fatal; a
// stale one is cleaned up and the launch proceeds.
func (s *Supervisor) Start(ctx context.Context, startLine, endLine int) (*Handle, error) {
	existing, err := s.Handle()
	if err != nil {
		return nil, fmt.Errorf("read handle: %w", err)
	}
	if existing != nil {
		if s.alive(existing) {
			return nil, &AlreadyRunningError{PID: existing.PID}
		}
		s.cleanStale(ctx, existing, "pre-launch check")
	}

	spec := s.spec
	if startLine > 0 {
		spec.StartLine = startLine
	}
	if endLine > 0 {
		spec.EndLine = endLine
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	hf, err := claimHandle(s.handlePath)
	if err != nil {
		if os.IsExist(err) {
			// lost the create race to a concurrent launch
			pid := 0
			if h, rerr := s.Handle(); rerr == nil && h != nil {
				pid = h.PID
			}
			return nil, &AlreadyRunningError{PID: pid}
		}
		return nil, fmt.Errorf("claim handle: %w", err)
	}

	started := s.now()
	logPath := joblog.Path(s.logDir, started)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		s.abortClaim(hf)
		return nil, fmt.Errorf("create launch log: %w", err)
	}

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	cmd.Env = s.envM.Merge(spec.Env)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// detach from the controlling session; the worker survives CLI exit
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		_ = os.Remove(logPath)
		s.abortClaim(hf)
		return nil, fmt.Errorf("launch worker: %w", err)
	}
	pid := cmd.Process.Pid
	_ = logFile.Close()

	h := &Handle{
		PID:       pid,
		Spec:      &spec,
		StartUnix: detector.ProcStartUnix(pid),
		LogPath:   logPath,
	}
	if err := writeHandle(hf, h); err != nil {
		_ = hf.Close()
		s.logger.Error("persist handle failed; worker left running", "pid", pid, "err", err)
		return nil, err
	}
	if err := hf.Close(); err != nil {
		return nil, fmt.Errorf("close handle: %w", err)
	}
	_ = cmd.Process.Release()

	s.logger.Info("worker launched", "pid", pid, "log", logPath,
		"start_line", spec.StartLine, "end_line", spec.EndLine)
	metrics.IncLaunch()
	metrics.SetWorkerUp(true)
	s.record(ctx, history.Event{Type: history.EventLaunch, PID: pid, LogPath: logPath})
	return h, nil
}

func (s *Supervisor) abortClaim(hf *os.File) {
	_ = hf.Close()
	_ = os.Remove(s.handlePath)
}

// cleanStale removes a handle whose process is dead.
func (s *Supervisor) cleanStale(ctx context.Context, h *Handle, where string) {
	if err := os.Remove(s.handlePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove stale handle failed", "pid", h.PID, "err", err)
		return
	}
	s.logger.Debug("removed stale handle", "pid", h.PID, "where", where)
	metrics.IncStaleCleanup()
	s.record(ctx, history.Event{Type: history.EventStaleClean, PID: h.PID, LogPath: h.LogPath})
}

func (s *Supervisor) record(ctx context.Context, e history.Event) {
	if s.hist == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	sendCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.hist.Send(sendCtx, e); err != nil {
		s.logger.Warn("history sink send failed", "event", string(e.Type), "err", err)
	}
}
