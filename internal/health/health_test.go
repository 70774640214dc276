package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/melodia-bot/maestro/internal/supervisor"
)

type fakeStatus struct{ running bool }

func (f fakeStatus) Status(role supervisor.Role) supervisor.Status {
	return supervisor.Status{Role: role, Running: f.running, PID: 1234}
}

func TestProbeDownWhenProcessNotRunning(t *testing.T) {
	// Even with a perfectly healthy endpoint, a dead process means Down.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(fakeStatus{running: false}, 0)
	m.SetEndpoint(srv.URL + "/health")
	res := m.Probe(context.Background())
	if res.Verdict != Down {
		t.Fatalf("want Down, got %s", res.Verdict)
	}
}

func TestProbeHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(fakeStatus{running: true}, 0)
	m.SetEndpoint(srv.URL + "/health")
	res := m.Probe(context.Background())
	if res.Verdict != Healthy {
		t.Fatalf("want Healthy, got %s (%s)", res.Verdict, res.Detail)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", res.StatusCode)
	}
}

func TestProbeDegradedOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := New(fakeStatus{running: true}, 0)
	m.SetEndpoint(srv.URL + "/health")
	res := m.Probe(context.Background())
	if res.Verdict != Degraded {
		t.Fatalf("want Degraded, got %s", res.Verdict)
	}
}

func TestProbeDegradedOnConnectionRefused(t *testing.T) {
	// Alive process, nothing listening: Degraded, not Down.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := New(fakeStatus{running: true}, 0)
	m.SetEndpoint(url + "/health")
	res := m.Probe(context.Background())
	if res.Verdict != Degraded {
		t.Fatalf("want Degraded, got %s", res.Verdict)
	}
}
