// Package server exposes the supervisor over HTTP for dashboards and
// remote operators. The surface is read-mostly: the only mutating
// endpoint is POST /stop.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ztonys/batchctl/internal/joblog"
	"github.com/ztonys/batchctl/internal/metrics"
	"github.com/ztonys/batchctl/internal/progress"
	"github.com/ztonys/batchctl/internal/supervisor"
)

const defaultLogLines = 50

// Router provides embeddable HTTP handlers for the supervised worker.
// Endpoints:
//
//	GET  {basePath}/status         worker lifecycle state
//	GET  {basePath}/progress       progress summary; ?records=1 adds the raw list
//	GET  {basePath}/logs           trailing lines of the latest launch log; ?n= overrides 50
//	POST {basePath}/stop           drive the stop state machine
//	GET  {basePath}/healthz        liveness of this server
//	GET  {basePath}/metrics        prometheus exposition
type Router struct {
	sup          *supervisor.Supervisor
	progressPath string
	logDir       string
	basePath     string
	logger       *slog.Logger
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath "/batch" results in /batch/status, /batch/stop, ...
func NewRouter(sup *supervisor.Supervisor, progressPath, logDir, basePath string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		sup:          sup,
		progressPath: progressPath,
		logDir:       logDir,
		basePath:     sanitizeBase(basePath),
		logger:       logger,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/progress", r.handleProgress)
	group.GET("/logs", r.handleLogs)
	group.POST("/stop", r.handleStop)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call Close or Shutdown on the returned server to stop it.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleStatus(c *gin.Context) {
	st, err := r.sup.Status(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

type progressResp struct {
	Summary progress.Summary  `json:"summary"`
	Records []progress.Record `json:"records,omitempty"`
}

func (r *Router) handleProgress(c *gin.Context) {
	records, err := progress.Load(r.progressPath)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	resp := progressResp{Summary: progress.Summarize(records)}
	if c.Query("records") == "1" {
		resp.Records = records
	}
	refreshProgressMetrics(resp.Summary)
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleLogs(c *gin.Context) {
	n := defaultLogLines
	if s := c.Query("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "n must be a positive integer"})
			return
		}
		n = v
	}
	path, err := joblog.Latest(r.logDir)
	if err != nil {
		if errors.Is(err, joblog.ErrNoLogs) {
			writeJSON(c, http.StatusNotFound, errorResp{Error: "no launch logs yet"})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	lines, err := joblog.TailLines(path, n)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	for _, ln := range lines {
		_, _ = c.Writer.WriteString(ln)
		_, _ = c.Writer.WriteString("\n")
	}
}

func (r *Router) handleStop(c *gin.Context) {
	res, err := r.sup.Stop(c.Request.Context())
	if err != nil {
		if errors.Is(err, supervisor.ErrStopFailed) {
			// surface the result so the caller sees the retained handle
			writeJSON(c, http.StatusConflict, res)
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func refreshProgressMetrics(s progress.Summary) {
	metrics.SetProgress(s.Success, s.Skipped, s.NotFound, s.Failed, s.TotalArticles)
}
