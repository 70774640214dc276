//go:build !windows

package detector

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestPIDFileDetectorMissingFile(t *testing.T) {
	d := PIDFileDetector{Path: filepath.Join(t.TempDir(), "nope.pid")}
	alive, err := d.Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if alive {
		t.Fatalf("missing pidfile must not report alive")
	}
}

func TestPIDFileDetectorInvalidContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(p, []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (PIDFileDetector{Path: p}).Alive(); err == nil {
		t.Fatalf("expected error for garbage pidfile")
	}
}

func TestPIDFileDetectorLivePID(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}()
	p := filepath.Join(t.TempDir(), "live.pid")
	if err := os.WriteFile(p, []byte(fmt.Sprintf("%d\n", cmd.Process.Pid)), 0o600); err != nil {
		t.Fatal(err)
	}
	alive, err := (PIDFileDetector{Path: p}).Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if !alive {
		t.Fatalf("live process not detected")
	}
}

func TestPIDFileDetectorStaleStartTime(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}()
	// Claim the PID was started long ago; a mismatching start time means the
	// PID was reused and the record must be treated as dead.
	p := filepath.Join(t.TempDir(), "stale.pid")
	content := fmt.Sprintf("%d\n{\"started_unix\":%d}\n", cmd.Process.Pid, time.Now().Add(-24*time.Hour).Unix())
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	alive, err := (PIDFileDetector{Path: p}).Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if alive {
		t.Fatalf("stale start time should invalidate the pidfile")
	}
}

func TestPIDDetector(t *testing.T) {
	d := PIDDetector{PID: os.Getpid()}
	if alive, _ := d.Alive(); !alive {
		t.Fatalf("own pid should be alive")
	}
	if alive, _ := (PIDDetector{PID: -1}).Alive(); alive {
		t.Fatalf("negative pid must be dead")
	}
}

func TestPatternDetectorFindsChild(t *testing.T) {
	// A shell wrapper keeps the marker visible in the command line. The
	// second statement stops the shell from exec-replacing itself.
	marker := fmt.Sprintf("maestro-test-%d", os.Getpid())
	cmd := exec.Command("/bin/sh", "-c", "sleep 5; true #"+marker)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}()

	d := PatternDetector{Pattern: marker}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if alive, _ := d.Alive(); alive {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("pattern %q not found in process table", marker)
}

func TestPatternDetectorEmptyPattern(t *testing.T) {
	pids, err := (PatternDetector{}).FindPIDs()
	if err != nil || pids != nil {
		t.Fatalf("empty pattern: pids=%v err=%v", pids, err)
	}
}
