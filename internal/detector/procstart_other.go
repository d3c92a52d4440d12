//go:build !linux && !windows

package detector

import gopsproc "github.com/shirou/gopsutil/v4/process"

// ProcStartUnix returns the Unix second the process started, or 0 when it
// cannot be determined. Darwin and the BSDs go through gopsutil, which asks
// sysctl for the process creation time.
func ProcStartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}
