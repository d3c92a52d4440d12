package worker

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Spec describes one invocation of the external batch-download worker.
// The worker consumes a journal list, writes per-journal JSON files to the
// output directory and appends outcome records to the progress log.
type Spec struct {
	Command     string   `json:"command"`      // worker program, e.g. "python3 batch_download_journals.py"
	InputFile   string   `json:"input_file"`   // journal list, one name per line
	OutputDir   string   `json:"output_dir"`   // per-journal JSON output
	ProgressLog string   `json:"progress_log"` // JSON array of outcome records
	StartLine   int      `json:"start_line"`   // 1-indexed, 0 means worker default
	EndLine     int      `json:"end_line"`     // 1-indexed inclusive, 0 means end of file
	WorkDir     string   `json:"work_dir"`
	Env         []string `json:"env"` // extra "K=V" entries for the worker
}

func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("worker command is required")
	}
	if strings.TrimSpace(s.InputFile) == "" {
		return fmt.Errorf("worker input file is required")
	}
	if s.StartLine < 0 || s.EndLine < 0 {
		return fmt.Errorf("line bounds must be positive")
	}
	if s.StartLine > 0 && s.EndLine > 0 && s.EndLine < s.StartLine {
		return fmt.Errorf("end line %d precedes start line %d", s.EndLine, s.StartLine)
	}
	return nil
}

// Args returns the worker's argument list: the positional input file plus
// output/progress flags and the optional line bounds.
func (s *Spec) Args() []string {
	args := []string{s.InputFile}
	if s.OutputDir != "" {
		args = append(args, "-o", s.OutputDir)
	}
	if s.ProgressLog != "" {
		args = append(args, "-l", s.ProgressLog)
	}
	if s.StartLine > 0 {
		args = append(args, "-s", strconv.Itoa(s.StartLine))
	}
	if s.EndLine > 0 {
		args = append(args, "-e", strconv.Itoa(s.EndLine))
	}
	return args
}

// BuildCommand constructs an *exec.Cmd for this spec. It avoids invoking a
// shell unless the configured command carries obvious shell metacharacters.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// a command that fails loudly when started
		return exec.Command("/bin/false")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		full := cmdStr + " " + shellJoin(s.Args())
		// #nosec G204
		return exec.Command("/bin/sh", "-c", full)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	args := append(parts[1:], s.Args()...)
	// #nosec G204
	return exec.Command(name, args...)
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
