package prereq

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/melodia-bot/maestro/internal/config"
)

// ErrMissingRequiredTool aborts any enclosing deployment sequence.
var ErrMissingRequiredTool = errors.New("required tool not found")

// Tool is one external binary the deployment depends on.
type Tool struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"` // resolved path when found
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Feature  string `json:"feature,omitempty"` // what degrades when an optional tool is missing
}

// Report is the outcome of a prerequisite check. Missing optional tools make
// the deployment degraded, not failed.
type Report struct {
	Tools    []Tool   `json:"tools"`
	Degraded []string `json:"degraded,omitempty"`
}

// lookPath is swappable in tests.
var lookPath = exec.LookPath

// Check verifies required and optional tools. Optional tools tied to a
// dependent service are only consulted when that service's endpoint is local;
// a remote service must never warn about a missing local binary.
func Check(cfg config.Config) (Report, error) {
	tools := []Tool{
		{Name: "python3", Required: true},
		{Name: "pip3", Required: true},
		{Name: "ffmpeg", Feature: "audio transcoding"},
	}
	if cfg.MongoLocal() {
		tools = append(tools,
			Tool{Name: "mongod", Feature: "local document store bootstrap"},
			Tool{Name: "mongodump", Feature: "document store backup dumps"},
		)
	}
	if cfg.RedisLocal() {
		tools = append(tools, Tool{Name: "redis-server", Feature: "local cache bootstrap"})
	}

	var rep Report
	for _, t := range tools {
		if p, err := lookPath(t.Name); err == nil {
			t.Found = true
			t.Path = p
		}
		rep.Tools = append(rep.Tools, t)
		if t.Found {
			continue
		}
		if t.Required {
			return rep, fmt.Errorf("%w: %s", ErrMissingRequiredTool, t.Name)
		}
		rep.Degraded = append(rep.Degraded, t.Feature)
	}
	return rep, nil
}
