package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ztonys/batchctl/internal/worker"
)

// Handle is the persisted record of the supervised worker process. At most
// one handle file exists at a time; its presence does not guarantee the
// process is alive and must be cross-checked against the process table.
type Handle struct {
	PID       int
	Spec      *worker.Spec
	StartUnix int64
	LogPath   string
}

type handleMeta struct {
	StartUnix int64  `json:"start_unix"`
	LogPath   string `json:"log,omitempty"`
}

// ReadHandle reads a handle file written by the launcher. The format is the
// PID on the first line, followed by the worker spec JSON and a meta JSON
// line. Legacy files containing only a PID parse with nil spec and no meta.
func ReadHandle(path string) (*Handle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	// drop trailing blank lines so line positions are meaningful
	for len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	pidStr := strings.TrimSpace(lines[0])
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	h := &Handle{PID: pid}
	if len(lines) >= 2 {
		var spec worker.Spec
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[1])), &spec); err == nil && spec.Command != "" {
			h.Spec = &spec
		}
	}
	if len(lines) >= 3 {
		var m handleMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[2])), &m); err == nil {
			h.StartUnix = m.StartUnix
			h.LogPath = m.LogPath
		}
	} else if len(lines) >= 2 {
		// two-line file: the second line may be the meta
		var m handleMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[1])), &m); err == nil && m.StartUnix > 0 {
			h.StartUnix = m.StartUnix
			h.LogPath = m.LogPath
		}
	}
	return h, nil
}

// claimHandle atomically creates the handle file, failing if one already
// exists. Winning the create is what serializes concurrent launches.
func claimHandle(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create handle dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// writeHandle fills a claimed handle file with the launched process record.
func writeHandle(f *os.File, h *Handle) error {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(h.PID))
	sb.WriteByte('\n')
	if h.Spec != nil {
		specJSON, err := json.Marshal(h.Spec)
		if err != nil {
			return fmt.Errorf("marshal worker spec: %w", err)
		}
		sb.Write(specJSON)
		sb.WriteByte('\n')
	}
	metaJSON, err := json.Marshal(handleMeta{StartUnix: h.StartUnix, LogPath: h.LogPath})
	if err != nil {
		return fmt.Errorf("marshal handle meta: %w", err)
	}
	sb.Write(metaJSON)
	sb.WriteByte('\n')
	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write handle: %w", err)
	}
	return f.Sync()
}
