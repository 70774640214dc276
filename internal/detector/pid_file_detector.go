//go:build !windows

package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// pidAlive returns true if a process with the given pid exists (EPERM counts:
// the process is there, we just may not own it).
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// PIDFileDetector treats an on-disk PID file as a liveness hint. The file's
// first line is the PID; an optional JSON handle on the second line carries
// the recorded process start time, which guards against PID reuse after a
// crash of the orchestrator.
type PIDFileDetector struct {
	Path string
}

type pidMeta struct {
	StartedUnix int64 `json:"started_unix"`
}

func (d PIDFileDetector) Alive() (bool, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	pidLine, rest, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return false, fmt.Errorf("invalid pid in %s: %w", d.Path, err)
	}

	var meta pidMeta
	if rest = strings.TrimSpace(rest); rest != "" {
		_ = json.Unmarshal([]byte(rest), &meta)
	}
	if meta.StartedUnix > 0 {
		if cur := ProcStartUnix(pid); cur > 0 && cur != meta.StartedUnix {
			// PID reused by an unrelated process; the record is stale.
			return false, nil
		}
	}
	return pidAlive(pid), nil
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.Path }

// PIDDetector detects by a known PID number.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) { return pidAlive(d.PID), nil }
func (d PIDDetector) Describe() string     { return fmt.Sprintf("pid:%d", d.PID) }
