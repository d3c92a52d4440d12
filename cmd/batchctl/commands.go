package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ztonys/batchctl/internal/config"
	"github.com/ztonys/batchctl/internal/env"
	"github.com/ztonys/batchctl/internal/history"
	"github.com/ztonys/batchctl/internal/history/factory"
	"github.com/ztonys/batchctl/internal/joblog"
	"github.com/ztonys/batchctl/internal/logger"
	"github.com/ztonys/batchctl/internal/metrics"
	"github.com/ztonys/batchctl/internal/progress"
	"github.com/ztonys/batchctl/internal/server"
	"github.com/ztonys/batchctl/internal/supervisor"
)

// command carries the wired-up dependencies for one CLI invocation.
type command struct {
	cfg       *config.Config
	sup       *supervisor.Supervisor
	logger    *slog.Logger
	logCloser io.Closer
	hist      history.Sink
	stdout    io.Writer
}

func newCommand(configPath string) (*command, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closer := logger.New(cfg.Log)

	// history is best-effort: a broken sink degrades to logging only
	var hist history.Sink
	if cfg.History.DSN != "" {
		hist, err = factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			log.Warn("history sink disabled", "err", err)
			hist = nil
		}
	}

	osEnv := env.New()
	osEnv.FromOS()

	sup := supervisor.New(supervisor.Options{
		HandlePath:   cfg.Paths.HandleFile,
		LogDir:       cfg.Paths.LogDir,
		Worker:       cfg.WorkerSpec(),
		Env:          osEnv,
		GracePolls:   cfg.Stop.GracePolls,
		PollInterval: cfg.Stop.PollInterval,
		KillWait:     cfg.Stop.KillWait,
		Logger:       log,
		History:      hist,
	})

	return &command{
		cfg:       cfg,
		sup:       sup,
		logger:    log,
		logCloser: closer,
		hist:      hist,
		stdout:    os.Stdout,
	}, nil
}

func (c *command) Close() {
	if c.hist != nil {
		_ = c.hist.Close()
	}
	if c.logCloser != nil {
		_ = c.logCloser.Close()
	}
}

func (c *command) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.stdout, format, args...)
}

func (c *command) printJSON(v any) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Start launches the worker; a live worker is a hard error (exit 1).
func (c *command) Start(ctx context.Context, f StartFlags) error {
	h, err := c.sup.Start(ctx, f.StartLine, f.EndLine)
	if err != nil {
		return err
	}
	c.printf("Started worker with PID %d\n", h.PID)
	c.printf("Log: %s\n", h.LogPath)
	if h.Spec != nil && (h.Spec.StartLine > 0 || h.Spec.EndLine > 0) {
		c.printf("Lines: %d..%d\n", h.Spec.StartLine, h.Spec.EndLine)
	}
	return nil
}

// Status reports liveness and the aggregated download progress. All three
// states exit 0; only infrastructure failures are errors.
func (c *command) Status(ctx context.Context, f StatusFlags) error {
	st, err := c.sup.Status(ctx)
	if err != nil {
		return err
	}
	// a corrupt progress log must not hide the liveness answer
	records, perr := progress.Load(c.cfg.Worker.ProgressLog)
	if perr != nil {
		c.logger.Warn("progress log unreadable", "path", c.cfg.Worker.ProgressLog, "err", perr)
	}
	sum := progress.Summarize(records)

	if f.JSON {
		c.printJSON(struct {
			Status   supervisor.Status `json:"status"`
			Progress progress.Summary  `json:"progress"`
		}{st, sum})
		return nil
	}

	c.printf("Worker: %s\n", st.State)
	if st.PID > 0 {
		c.printf("PID: %d\n", st.PID)
	}
	if !st.StartedAt.IsZero() {
		c.printf("Started: %s (up %s)\n", st.StartedAt.Format(time.RFC3339), st.Uptime)
	}
	if st.LogPath != "" {
		c.printf("Log: %s\n", st.LogPath)
	}
	c.printf("Progress: %d journals (%d success, %d skipped, %d not found, %d failed)\n",
		sum.Total, sum.Success, sum.Skipped, sum.NotFound, sum.Failed)
	c.printf("Articles downloaded: %d\n", sum.TotalArticles)
	if sum.Latest != nil {
		c.printf("Last journal: %s [%s]\n", sum.Latest.JournalDisplayName, sum.Latest.Status)
	}
	if st.State == supervisor.StateRunning && st.LogPath != "" {
		lines, err := joblog.TailLines(st.LogPath, statusLogLines)
		if err == nil && len(lines) > 0 {
			c.printf("\nRecent log output:\n")
			for _, ln := range lines {
				c.printf("  %s\n", ln)
			}
		}
	}
	return nil
}

// Stop drives the shutdown state machine. A worker that survives SIGKILL
// is the only failure (exit 1, handle retained).
func (c *command) Stop(ctx context.Context) error {
	res, err := c.sup.Stop(ctx)
	if err != nil {
		if errors.Is(err, supervisor.ErrStopFailed) {
			c.printf("Worker %d did not terminate; handle file retained\n", res.PID)
		}
		return err
	}
	switch res.State {
	case supervisor.StopNoHandle:
		c.printf("No worker running\n")
	case supervisor.StopStale:
		c.printf("Worker %d was already gone; cleaned up stale handle\n", res.PID)
	case supervisor.StopGraceful:
		c.printf("Worker %d stopped gracefully\n", res.PID)
	case supervisor.StopForced:
		c.printf("Worker %d killed after grace window\n", res.PID)
	}
	return nil
}

// Logs prints or follows the most recent launch log.
func (c *command) Logs(ctx context.Context, f LogsFlags) error {
	path, err := joblog.Latest(c.cfg.Paths.LogDir)
	if err != nil {
		if errors.Is(err, joblog.ErrNoLogs) {
			return fmt.Errorf("no launch logs in %s; has the worker ever been started?", c.cfg.Paths.LogDir)
		}
		return err
	}

	if f.Follow {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := joblog.Follow(ctx, path, c.stdout); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	n := f.Lines
	if n <= 0 {
		n = defaultTailLines
	}
	lines, err := joblog.TailLines(path, n)
	if err != nil {
		return err
	}
	for _, ln := range lines {
		c.printf("%s\n", ln)
	}
	return nil
}

// Serve runs the HTTP status server until interrupted.
func (c *command) Serve(ctx context.Context, f ServeFlags) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	listen := f.Listen
	if listen == "" {
		listen = c.cfg.Server.Listen
	}
	basePath := f.BasePath
	if basePath == "" {
		basePath = c.cfg.Server.BasePath
	}

	r := server.NewRouter(c.sup, c.cfg.Worker.ProgressLog, c.cfg.Paths.LogDir, basePath, c.logger)
	srv := server.NewServer(listen, r)
	c.logger.Info("http server listening", "addr", listen, "base_path", basePath)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	c.logger.Info("http server stopped")
	return nil
}
