// Package joblog manages the per-launch worker log files: naming by start
// timestamp, selection of the newest file and tail/follow reads. Files are
// append-only and never mutated by this package once the worker exits.
package joblog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	prefix = "batch_download_"
	suffix = ".log"
	stamp  = "20060102_150405"
)

// ErrNoLogs is returned when the log directory holds no launch logs.
var ErrNoLogs = errors.New("no launch logs found")

// FileName returns the log file name for a launch started at t.
func FileName(t time.Time) string {
	return prefix + t.Format(stamp) + suffix
}

// Path returns the full log path for a launch started at t.
func Path(dir string, t time.Time) string {
	return filepath.Join(dir, FileName(t))
}

// IsLogName reports whether name matches the launcher's naming pattern.
func IsLogName(name string) bool {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	_, err := time.ParseInLocation(stamp, ts, time.Local)
	return err == nil
}

// Latest returns the path of the newest launch log in dir. The timestamp
// pattern makes lexical order equal time order.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoLogs
		}
		return "", fmt.Errorf("read log dir: %w", err)
	}
	var best string
	for _, e := range entries {
		if e.IsDir() || !IsLogName(e.Name()) {
			continue
		}
		if e.Name() > best {
			best = e.Name()
		}
	}
	if best == "" {
		return "", ErrNoLogs
	}
	return filepath.Join(dir, best), nil
}
