//go:build linux

package detector

import (
	"os"
	"strconv"
	"strings"

	sysconf "github.com/tklauser/go-sysconf"
)

// ProcStartUnix returns the Unix second the process started, or 0 when it
// cannot be determined. The value is stable for the lifetime of the process,
// which is what makes a recycled PID distinguishable from the original
// worker.
func ProcStartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	ticks, ok := startTicks(pid)
	if !ok {
		return 0
	}
	boot, ok := bootTimeUnix()
	if !ok {
		return 0
	}
	return boot + ticks/clockTicksPerSec()
}

// startTicks extracts field 22 of /proc/[pid]/stat, the start time in clock
// ticks since boot. The comm field may contain spaces and parentheses, so
// fields are counted from the last closing paren.
func startTicks(pid int) (int64, bool) {
	raw, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0, false
	}
	stat := string(raw)
	i := strings.LastIndexByte(stat, ')')
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(stat[i+1:])
	// fields[0] is the state character (field 3 overall)
	if len(fields) < 20 {
		return 0, false
	}
	ticks, err := strconv.ParseInt(fields[19], 10, 64)
	return ticks, err == nil && ticks > 0
}

// bootTimeUnix reads the btime line of /proc/stat.
func bootTimeUnix() (int64, bool) {
	raw, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if rest, ok := strings.CutPrefix(line, "btime "); ok {
			v, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			return v, err == nil && v > 0
		}
	}
	return 0, false
}

func clockTicksPerSec() int64 {
	if clk, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && clk > 0 {
		return clk
	}
	return 100
}
