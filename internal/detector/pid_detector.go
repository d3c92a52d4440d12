//go:build !windows

package detector

import (
	"errors"
	"fmt"
	"syscall"
)

// pidAlive returns true if a process with the given pid exists (or EPERM,
// which still means the pid is occupied by a live process).
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// PIDDetector detects liveness of a known PID.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) { return pidAlive(d.PID), nil }
func (d PIDDetector) Describe() string     { return fmt.Sprintf("pid:%d", d.PID) }

// StartTimeDetector detects liveness of a PID and additionally verifies the
// process start time, so a recycled PID belonging to an unrelated process is
// not mistaken for the worker. StartUnix <= 0 disables the start-time check.
type StartTimeDetector struct {
	PID       int
	StartUnix int64
}

func (d StartTimeDetector) Alive() (bool, error) {
	if !pidAlive(d.PID) {
		return false, nil
	}
	if d.StartUnix > 0 {
		if cur := ProcStartUnix(d.PID); cur > 0 && cur != d.StartUnix {
			// PID reused by a different process
			return false, nil
		}
	}
	return true, nil
}

func (d StartTimeDetector) Describe() string {
	return fmt.Sprintf("pid:%d@%d", d.PID, d.StartUnix)
}
