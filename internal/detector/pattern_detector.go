package detector

import (
	"os"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// PatternDetector inspects the process table for a command line containing
// Pattern. It is the authoritative liveness source for status queries: PID
// files are hints, the process table is ground truth.
type PatternDetector struct {
	Pattern string
}

func (d PatternDetector) Alive() (bool, error) {
	pids, err := d.FindPIDs()
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

func (d PatternDetector) Describe() string { return "pattern:" + d.Pattern }

// FindPIDs returns the PIDs of all processes whose command line contains the
// pattern. Used both for status and for the stray-process reconciliation pass
// after a stop.
func (d PatternDetector) FindPIDs() ([]int, error) {
	if d.Pattern == "" {
		return nil, nil
	}
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, err
	}
	self := os.Getpid()
	var out []int
	for _, p := range procs {
		if int(p.Pid) == self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, d.Pattern) {
			out = append(out, int(p.Pid))
		}
	}
	return out, nil
}
