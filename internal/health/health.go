package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/melodia-bot/maestro/internal/supervisor"
)

// Verdict classifies the web role's health.
type Verdict string

const (
	// Healthy: the process runs and the endpoint answered 2xx.
	Healthy Verdict = "healthy"
	// Degraded: the process runs but the endpoint failed. A hung process
	// that accepts connections without finishing health logic lands here,
	// never in Down.
	Degraded Verdict = "degraded"
	// Down: the web process is not running at all.
	Down Verdict = "down"
)

// Result carries the verdict plus probe detail for operator display.
type Result struct {
	Verdict    Verdict       `json:"verdict"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

// statusReporter is the slice of the supervisor the monitor needs.
type statusReporter interface {
	Status(role supervisor.Role) supervisor.Status
}

// Monitor probes the managed web process's health endpoint. It is strictly a
// client of that endpoint, never its implementer.
type Monitor struct {
	sup     statusReporter
	url     string
	timeout time.Duration
}

func New(sup statusReporter, port int) *Monitor {
	return &Monitor{
		sup:     sup,
		url:     fmt.Sprintf("http://127.0.0.1:%d/health", port),
		timeout: 3 * time.Second,
	}
}

// SetEndpoint overrides the probe target; used in tests.
func (m *Monitor) SetEndpoint(url string) { m.url = url }

// Probe issues a single GET against the health endpoint. Process liveness is
// decided first: a dead process is Down regardless of what might answer on
// the port.
func (m *Monitor) Probe(ctx context.Context) Result {
	st := m.sup.Status(supervisor.RoleWeb)
	if !st.Running {
		return Result{Verdict: Down, Detail: "web process not running"}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return Result{Verdict: Degraded, Detail: err.Error()}
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start).Round(time.Millisecond)
	if err != nil {
		return Result{Verdict: Degraded, Latency: latency, Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Verdict: Healthy, StatusCode: resp.StatusCode, Latency: latency}
	}
	return Result{
		Verdict: Degraded, StatusCode: resp.StatusCode, Latency: latency,
		Detail: fmt.Sprintf("health endpoint returned %s", resp.Status),
	}
}
