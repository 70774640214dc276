//go:build !windows

package process

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/melodia-bot/maestro/internal/detector"
)

// ErrStartFailed reports that a freshly launched process exited inside its
// grace window. The PID file is deliberately retained for postmortem use.
var ErrStartFailed = errors.New("process exited during start grace window")

// Handle owns a launched child process: the OS process reference plus the
// metadata needed to recover it after an orchestrator restart. The PID file
// is a serialization of this handle, nothing more.
type Handle struct {
	Spec      Spec
	cmd       *exec.Cmd
	StartedAt time.Time
}

// Meta is the JSON payload stored on the PID file's second line.
type Meta struct {
	Role        string `json:"role"`
	Command     string `json:"command"`
	StartedUnix int64  `json:"started_unix"`
}

// Launch starts the child described by spec. Detached specs get a fresh
// session and their output wired to the spec's writers; attached specs
// inherit the orchestrator's stdio and run in their own process group.
func Launch(spec Spec) (*Handle, error) {
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		// nil writers leave the child on the null device via os/exec.
		cmd.Stdout = spec.Stdout
		cmd.Stderr = spec.Stderr
	} else {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", spec.Role, err)
	}
	h := &Handle{Spec: spec, cmd: cmd, StartedAt: time.Now()}
	// Reap on exit so a crashed child does not linger as a zombie while the
	// orchestrator is still running.
	go func() { _ = cmd.Wait() }()
	return h, nil
}

// PID returns the child's process id, or 0 when unknown.
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// WritePIDFile persists the handle: PID on the first line, JSON metadata on
// the second. The recorded start time comes from the process table so that a
// later invocation compares like with like when checking for PID reuse; the
// wall clock is only a fallback.
func (h *Handle) WritePIDFile() error {
	if h.Spec.PIDFile == "" || h.PID() == 0 {
		return nil
	}
	started := detector.ProcStartUnix(h.PID())
	if started == 0 {
		started = h.StartedAt.Unix()
	}
	meta := Meta{Role: h.Spec.Role, Command: h.Spec.Command, StartedUnix: started}
	mb, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(h.Spec.PIDFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	content := strconv.Itoa(h.PID()) + "\n" + string(mb) + "\n"
	return os.WriteFile(h.Spec.PIDFile, []byte(content), 0o600)
}

// Alive probes the child directly, treating a zombie as dead.
func (h *Handle) Alive() bool {
	pid := h.PID()
	if pid <= 0 {
		return false
	}
	if isZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// EnforceStartDuration polls liveness until d elapses, failing with
// ErrStartFailed as soon as the child is gone. A zero duration skips the
// check entirely.
func (h *Handle) EnforceStartDuration(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if !h.Alive() {
			return fmt.Errorf("%s: %w after %s", h.Spec.Role, ErrStartFailed, time.Since(h.StartedAt).Round(time.Millisecond))
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// Terminate sends SIGTERM to the recorded pid's process group, escalating to
// SIGKILL when the process survives past wait. Signalling an already-gone
// process is not an error.
func Terminate(pid int, wait time.Duration) error {
	if pid <= 0 {
		return nil
	}
	if err := signalGroup(pid, syscall.SIGTERM); errors.Is(err, syscall.ESRCH) {
		return nil // already gone
	}
	// Any other signalling error (EPERM included) still goes through the
	// liveness poll and SIGKILL escalation below.
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !detectorAlive(pid) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = signalGroup(pid, syscall.SIGKILL)
	// Give the kernel a moment to tear the group down.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// signalGroup prefers the process group so detached workers (e.g. gunicorn
// children) go down with their leader, falling back to the single pid.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return syscall.Kill(pid, sig)
}

func detectorAlive(pid int) bool {
	alive, _ := detector.PIDDetector{PID: pid}.Alive()
	return alive && !isZombie(pid)
}

// isZombie reports whether /proc/<pid>/status shows state Z. Non-Linux
// platforms never report zombies here.
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
