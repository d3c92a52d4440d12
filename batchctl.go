package batchctl

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/ztonys/batchctl/internal/config"
	"github.com/ztonys/batchctl/internal/history"
	"github.com/ztonys/batchctl/internal/history/factory"
	"github.com/ztonys/batchctl/internal/joblog"
	"github.com/ztonys/batchctl/internal/metrics"
	"github.com/ztonys/batchctl/internal/progress"
	iapi "github.com/ztonys/batchctl/internal/server"
	"github.com/ztonys/batchctl/internal/supervisor"
	"github.com/ztonys/batchctl/internal/worker"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type WorkerSpec = worker.Spec

type Status = supervisor.Status

type StopResult = supervisor.StopResult

type Handle = supervisor.Handle

type ProgressRecord = progress.Record

type ProgressSummary = progress.Summary

type HistorySink = history.Sink

// ErrStopFailed reports a worker that survived SIGKILL; the handle file is
// retained so an operator can inspect the situation.
var ErrStopFailed = supervisor.ErrStopFailed

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

// Options configures an embedded Supervisor.
type Options = supervisor.Options

func New(opts Options) *Supervisor {
	return &Supervisor{inner: supervisor.New(opts)}
}

func (s *Supervisor) Start(ctx context.Context, startLine, endLine int) (*Handle, error) {
	return s.inner.Start(ctx, startLine, endLine)
}
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) { return s.inner.Stop(ctx) }
func (s *Supervisor) Status(ctx context.Context) (Status, error)   { return s.inner.Status(ctx) }
func (s *Supervisor) Handle() (*Handle, error)                     { return s.inner.Handle() }

// LoadConfig reads the TOML configuration; an empty path consults
// $BATCHCTL_CONFIG and then ./batchctl.toml.
func LoadConfig(path string) (*cfg.Config, error) { return cfg.Load(path) }

// NewHistorySink builds an audit sink from a DSN (sqlite path or
// postgres URL). An empty DSN is a configuration error; callers that want
// history disabled simply pass no sink.
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// LoadProgress reads and summarizes the worker's progress log.
// A missing file yields an empty summary.
func LoadProgress(path string) (ProgressSummary, []ProgressRecord, error) {
	records, err := progress.Load(path)
	if err != nil {
		return ProgressSummary{}, nil, err
	}
	return progress.Summarize(records), records, nil
}

// LatestLog returns the path of the most recent launch log in dir.
func LatestLog(dir string) (string, error) { return joblog.Latest(dir) }

// TailLog returns the last n lines of the launch log at path.
func TailLog(path string, n int) ([]string, error) { return joblog.TailLines(path, n) }

// NewHTTPServer starts an HTTP server exposing the supervisor API.
func NewHTTPServer(addr, basePath string, s *Supervisor, progressPath, logDir string) *http.Server {
	r := iapi.NewRouter(s.inner, progressPath, logDir, basePath, nil)
	return iapi.NewServer(addr, r)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
