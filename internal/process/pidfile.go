package process

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// ReadPIDFile reads a handle serialization written by Handle.WritePIDFile.
// Legacy files holding only a PID yield a nil Meta.
func ReadPIDFile(path string) (int, *Meta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, nil, err
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return pid, nil, nil
	}
	var meta Meta
	if err := json.Unmarshal([]byte(rest), &meta); err != nil {
		// The PID is still usable even when the metadata line is damaged.
		return pid, nil, nil
	}
	return pid, &meta, nil
}

// RemovePIDFile deletes the handle record, tolerating absence.
func RemovePIDFile(path string) {
	_ = os.Remove(path)
}
