package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/ztonys/batchctl/internal/worker"
)

// State is the reported lifecycle state of the supervised worker.
type State string

const (
	StateNotRunning State = "NOT RUNNING" // no handle file
	StateRunning    State = "RUNNING"     // handle present, process alive
	StateStopped    State = "STOPPED"     // handle was present but process is dead
)

// Status describes the worker as observed at one point in time.
type Status struct {
	State     State         `json:"state"`
	PID       int           `json:"pid,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LogPath   string        `json:"log_path,omitempty"`
	Spec      *worker.Spec  `json:"worker,omitempty"`
}

// Status inspects the handle file and the process table. A handle pointing
// at a dead process is removed (self-healing) and reported as STOPPED.
func (s *Supervisor) Status(ctx context.Context) (Status, error) {
	h, err := s.Handle()
	if err != nil {
		return Status{}, fmt.Errorf("read handle: %w", err)
	}
	if h == nil {
		return Status{State: StateNotRunning}, nil
	}
	if !s.alive(h) {
		s.cleanStale(ctx, h, "status check")
		return Status{State: StateStopped, PID: h.PID, LogPath: h.LogPath, Spec: h.Spec}, nil
	}

	st := Status{
		State:   StateRunning,
		PID:     h.PID,
		LogPath: h.LogPath,
		Spec:    h.Spec,
	}
	if h.StartUnix > 0 {
		st.StartedAt = time.Unix(h.StartUnix, 0)
		st.Uptime = s.now().Sub(st.StartedAt).Truncate(time.Second)
	}
	return st, nil
}
