package process

import (
	"io"
	"os/exec"
	"strings"
	"time"
)

// Spec describes a managed child process: how to launch it and how to find it
// again after the orchestrator restarts.
type Spec struct {
	Role          string        `json:"role"`           // "bot" or "web"
	Command       string        `json:"command"`        // launch command (shell syntax allowed)
	WorkDir       string        `json:"work_dir"`       // working directory for the child
	Env           []string      `json:"env"`            // extra K=V entries appended to the inherited env
	PIDFile       string        `json:"pid_file"`       // durable handle record, e.g. bot.pid
	Patterns      []string      `json:"patterns"`       // command signatures for process-table matching
	StartDuration time.Duration `json:"start_duration"` // grace window the child must survive
	Detached      bool          `json:"detached"`       // new session, output to log writers

	// Stdout/Stderr receive child output when Detached. Nil writers fall back
	// to the null device. Ignored in attached mode, where stdio is inherited.
	Stdout io.Writer `json:"-"`
	Stderr io.Writer `json:"-"`
}

// BuildCommand constructs an *exec.Cmd for the spec's command string. A shell
// is only involved when metacharacters require one.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}
