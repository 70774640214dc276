//go:build !windows

package process

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func waitUntil(d, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return false
}

func TestLaunchWritesPIDFileWithMeta(t *testing.T) {
	dir := t.TempDir()
	pidfile := filepath.Join(dir, "bot.pid")
	spec := Spec{Role: "bot", Command: "sleep 2", PIDFile: pidfile, Detached: true}
	h, err := Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer func() { _ = Terminate(h.PID(), time.Second) }()
	if err := h.WritePIDFile(); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}

	pid, meta, err := ReadPIDFile(pidfile)
	if err != nil {
		t.Fatalf("ReadPIDFile: %v", err)
	}
	if pid != h.PID() {
		t.Fatalf("pid mismatch: file=%d handle=%d", pid, h.PID())
	}
	if meta == nil || meta.Role != "bot" || meta.Command != "sleep 2" {
		t.Fatalf("meta not recovered: %+v", meta)
	}
	if meta.StartedUnix <= 0 {
		t.Fatalf("start time missing from meta: %+v", meta)
	}
}

func TestReadPIDFileLegacy(t *testing.T) {
	p := filepath.Join(t.TempDir(), "legacy.pid")
	if err := os.WriteFile(p, []byte("4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	pid, meta, err := ReadPIDFile(p)
	if err != nil {
		t.Fatalf("ReadPIDFile: %v", err)
	}
	if pid != 4242 || meta != nil {
		t.Fatalf("got pid=%d meta=%+v", pid, meta)
	}
}

func TestEnforceStartDurationFailsOnEarlyExit(t *testing.T) {
	spec := Spec{Role: "web", Command: "/bin/sh -c 'exit 3'", Detached: true}
	h, err := Launch(spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	err = h.EnforceStartDuration(time.Second)
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("want ErrStartFailed, got %v", err)
	}
}

func TestEnforceStartDurationPassesForStableProcess(t *testing.T) {
	h, err := Launch(Spec{Role: "bot", Command: "sleep 3", Detached: true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer func() { _ = Terminate(h.PID(), time.Second) }()
	if err := h.EnforceStartDuration(300 * time.Millisecond); err != nil {
		t.Fatalf("stable process reported dead: %v", err)
	}
}

func TestTerminateStopsProcess(t *testing.T) {
	h, err := Launch(Spec{Role: "bot", Command: "sleep 30", Detached: true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	pid := h.PID()
	if err := Terminate(pid, 2*time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if !waitUntil(time.Second, 50*time.Millisecond, func() bool { return !h.Alive() }) {
		t.Fatalf("process %d still alive after terminate", pid)
	}
}

func TestTerminateNonexistentPIDIsNoop(t *testing.T) {
	if err := Terminate(0, time.Second); err != nil {
		t.Fatalf("pid 0: %v", err)
	}
	// Signalling a pid that has already exited must not error, and the ESRCH
	// answer must short-circuit instead of sitting out the escalation window.
	h, err := Launch(Spec{Role: "bot", Command: "/bin/true", Detached: true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	pid := h.PID()
	waitUntil(2*time.Second, 20*time.Millisecond, func() bool { return !h.Alive() })
	start := time.Now()
	if err := Terminate(pid, 2*time.Second); err != nil {
		t.Fatalf("exited pid: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("terminate of an exited pid should return immediately")
	}
}

func TestLaunchDetachedWithoutWriters(t *testing.T) {
	// Absent writers the child runs against the null device.
	h, err := Launch(Spec{Role: "bot", Command: "sleep 2", Detached: true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer func() { _ = Terminate(h.PID(), time.Second) }()
	if !h.Alive() {
		t.Fatalf("detached child without writers not running")
	}
}

func TestBuildCommandShellDetection(t *testing.T) {
	plain := Spec{Command: "sleep 1"}
	if got := plain.BuildCommand().Args; len(got) != 2 || got[0] != "sleep" {
		t.Fatalf("plain command args: %v", got)
	}
	shelly := Spec{Command: "echo hi > /dev/null"}
	if got := shelly.BuildCommand().Args; got[0] != "/bin/sh" {
		t.Fatalf("expected shell wrapper, got %v", got)
	}
	empty := Spec{}
	if got := empty.BuildCommand().Args; !strings.HasSuffix(got[0], "true") {
		t.Fatalf("empty command should be a no-op, got %v", got)
	}
}
