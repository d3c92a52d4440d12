package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/ztonys/batchctl/internal/history"
	"github.com/ztonys/batchctl/internal/metrics"
)

// StopState names the terminal state of one stop attempt.
type StopState string

const (
	StopNoHandle StopState = "no_handle" // nothing to do
	StopStale    StopState = "stale"     // handle pointed at a dead process
	StopGraceful StopState = "graceful"  // died within the SIGTERM grace window
	StopForced   StopState = "forced"    // died only after SIGKILL
	StopFailed   StopState = "failed"    // survived SIGKILL; handle retained
)

// ErrStopFailed reports a worker that survived the forced kill. The handle
// file is intentionally retained for operator inspection.
var ErrStopFailed = errors.New("worker did not terminate; handle retained")

// StopResult captures the outcome of the stop state machine.
type StopResult struct {
	State StopState `json:"state"`
	PID   int       `json:"pid,omitempty"`
	Polls int       `json:"polls"` // liveness polls spent in the grace window
}

// Stop drives the shutdown state machine:
//
//	no handle                 -> StopNoHandle
//	handle, process dead      -> clean up, StopStale
//	alive -> SIGTERM          -> poll once per interval, up to gracePolls
//	  died in window          -> remove handle, StopGraceful
//	  survived -> SIGKILL     -> brief wait, final check
//	    died                  -> remove handle, StopForced
//	    survived              -> StopFailed + ErrStopFailed (handle kept)
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) {
	h, err := s.Handle()
	if err != nil {
		return StopResult{}, fmt.Errorf("read handle: %w", err)
	}
	if h == nil {
		return StopResult{State: StopNoHandle}, nil
	}
	res := StopResult{PID: h.PID}

	if !s.alive(h) {
		s.cleanStale(ctx, h, "stop")
		res.State = StopStale
		return res, nil
	}

	s.logger.Info("stopping worker", "pid", h.PID)
	if err := s.kill(h.PID, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return res, fmt.Errorf("signal worker %d: %w", h.PID, err)
	}

	for i := 0; i < s.gracePolls; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !s.alive(h) {
			res.State = StopGraceful
			res.Polls = i
			return res, s.confirmDead(ctx, h, res.State)
		}
		s.sleep(s.pollInterval)
		res.Polls = i + 1
	}

	s.logger.Warn("worker survived grace window, escalating", "pid", h.PID, "polls", res.Polls)
	if err := s.kill(h.PID, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return res, fmt.Errorf("kill worker %d: %w", h.PID, err)
	}
	s.sleep(s.killWait)

	if !s.alive(h) {
		res.State = StopForced
		return res, s.confirmDead(ctx, h, res.State)
	}

	res.State = StopFailed
	s.logger.Error("worker still alive after SIGKILL", "pid", h.PID)
	s.record(ctx, history.Event{Type: history.EventStopFailed, PID: h.PID, LogPath: h.LogPath})
	return res, ErrStopFailed
}

// confirmDead removes the handle after the process is confirmed gone and
// records the outcome.
func (s *Supervisor) confirmDead(ctx context.Context, h *Handle, state StopState) error {
	if err := os.Remove(s.handlePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove handle: %w", err)
	}
	metrics.IncStop()
	metrics.SetWorkerUp(false)
	ev := history.Event{Type: history.EventStop, PID: h.PID, LogPath: h.LogPath}
	if state == StopForced {
		ev.Type = history.EventForceKill
		metrics.IncForceKill()
	}
	s.record(ctx, ev)
	s.logger.Info("worker stopped", "pid", h.PID, "state", string(state))
	return nil
}
