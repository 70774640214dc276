//go:build !windows

package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/melodia-bot/maestro/internal/config"
	"github.com/melodia-bot/maestro/internal/detector"
	"github.com/melodia-bot/maestro/internal/logger"
	"github.com/melodia-bot/maestro/internal/process"
)

// Role identifies a managed process.
type Role string

const (
	RoleBot Role = "bot"
	RoleWeb Role = "web"
)

// Roles returns all managed roles in start order.
func Roles() []Role { return []Role{RoleBot, RoleWeb} }

// ValidRole reports whether name denotes a managed role.
func ValidRole(name string) bool { return name == string(RoleBot) || name == string(RoleWeb) }

// Status is the observed state of one role, derived from the process table.
type Status struct {
	Role       Role          `json:"role"`
	Running    bool          `json:"running"`
	PID        int           `json:"pid,omitempty"`
	Uptime     time.Duration `json:"uptime,omitempty"`
	DetectedBy string        `json:"detected_by,omitempty"`
}

// Supervisor owns start/stop/restart/status for the bot and web roles. PID
// files live in the working directory and record launched handles; liveness
// answers always come from the process table.
type Supervisor struct {
	cfg     config.Config
	streams logger.Streams
	log     *slog.Logger

	grace    time.Duration // child must survive this long after launch
	stopWait time.Duration // SIGTERM to SIGKILL escalation window
	pause    time.Duration // gap between stop and start on restart

	overrides map[Role]process.Spec // test seam
}

func New(cfg config.Config, streams logger.Streams, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		streams:  streams,
		log:      log,
		grace:    3 * time.Second,
		stopWait: 3 * time.Second,
		pause:    time.Second,
	}
}

// SetTimings adjusts the grace/stop/pause intervals. Zero values keep the
// current setting.
func (s *Supervisor) SetTimings(grace, stopWait, pause time.Duration) {
	if grace > 0 {
		s.grace = grace
	}
	if stopWait > 0 {
		s.stopWait = stopWait
	}
	if pause >= 0 {
		s.pause = pause
	}
}

// SetSpec overrides the launch spec for a role. Intended for tests, which
// substitute shell commands for the real application entry points.
func (s *Supervisor) SetSpec(role Role, spec process.Spec) {
	if s.overrides == nil {
		s.overrides = make(map[Role]process.Spec)
	}
	s.overrides[role] = spec
}

// PIDFile returns the handle record path for a role.
func (s *Supervisor) PIDFile(role Role) string {
	return filepath.Join(s.cfg.WorkDir, string(role)+".pid")
}

func (s *Supervisor) spec(role Role) process.Spec {
	if sp, ok := s.overrides[role]; ok {
		return sp
	}
	sp := process.Spec{
		Role:     string(role),
		WorkDir:  s.cfg.WorkDir,
		PIDFile:  s.PIDFile(role),
		Detached: s.cfg.Production(),
	}
	switch role {
	case RoleBot:
		sp.Command = "python3 bot.py"
		sp.Patterns = []string{"bot.py"}
	case RoleWeb:
		if s.cfg.Production() {
			sp.Command = fmt.Sprintf(
				"gunicorn app:app --workers %d --bind 0.0.0.0:%d --timeout 120 --worker-class uvicorn.workers.UvicornWorker",
				s.cfg.Workers, s.cfg.Port)
		} else {
			sp.Command = "python3 app.py"
		}
		// Both shapes are listed so a mode switch between invocations still
		// finds strays launched under the other mode.
		sp.Patterns = []string{"app.py", "gunicorn app:app"}
	}
	return sp
}

// Start launches the role's process. An already-running instance is stopped
// first so two instances of the same role never coexist. On early exit the
// PID file is retained for postmortem inspection and ErrStartFailed surfaces.
func (s *Supervisor) Start(role Role) error {
	if st := s.Status(role); st.Running {
		s.log.Warn("already running, restarting", "role", role, "pid", st.PID)
		if err := s.Stop(role); err != nil {
			return err
		}
	}

	sp := s.spec(role)
	if sp.Detached && sp.Stdout == nil {
		out, err := s.streams.Writer(string(role))
		if err != nil {
			return fmt.Errorf("open %s log: %w", role, err)
		}
		errW, err := s.streams.Writer(logger.StreamError)
		if err != nil {
			return fmt.Errorf("open error log: %w", err)
		}
		sp.Stdout = out
		sp.Stderr = errW
	}
	if sp.StartDuration == 0 {
		sp.StartDuration = s.grace
	}

	h, err := process.Launch(sp)
	if err != nil {
		return err
	}
	if err := h.WritePIDFile(); err != nil {
		s.log.Warn("pidfile write failed", "role", role, "error", err)
	}
	if err := h.EnforceStartDuration(sp.StartDuration); err != nil {
		// PID file stays on disk on purpose.
		return fmt.Errorf("start %s: %w", role, err)
	}
	s.log.Info("started", "role", role, "pid", h.PID(), "mode", s.cfg.Mode)
	return nil
}

// Stop terminates the role's process. A missing PID file makes this a no-op:
// stopping a stopped process is success. The recorded PID is validated against
// its stored start time before any signal goes out, so a PID reused by an
// unrelated process after an orchestrator crash is never terminated. The PID
// file is removed unconditionally, then a reconciliation pass sweeps the
// process table for strays matching the role's command signature, recovering
// from records that drifted from reality.
func (s *Supervisor) Stop(role Role) error {
	pidFile := s.PIDFile(role)
	pid, _, err := process.ReadPIDFile(pidFile)
	switch {
	case err == nil:
		var rec detector.Detector = detector.PIDFileDetector{Path: pidFile}
		if alive, _ := rec.Alive(); alive {
			_ = process.Terminate(pid, s.stopWait)
			s.log.Info("stopped", "role", role, "pid", pid, "via", rec.Describe())
		} else {
			s.log.Info("stale pid record, nothing signalled", "role", role, "pid", pid)
		}
		process.RemovePIDFile(pidFile)
	case os.IsNotExist(err):
		s.log.Info("not running", "role", role)
	default:
		// Unreadable record: discard it and rely on reconciliation below.
		process.RemovePIDFile(pidFile)
		s.log.Warn("discarded unreadable pidfile", "role", role, "error", err)
	}
	s.reconcile(role)
	return nil
}

// reconcile is the explicit recovery step: any process still matching the
// role's signature is terminated. Normal stops find nothing here.
func (s *Supervisor) reconcile(role Role) {
	for _, pat := range s.spec(role).Patterns {
		pids, err := (detector.PatternDetector{Pattern: pat}).FindPIDs()
		if err != nil {
			s.log.Warn("process table scan failed", "role", role, "error", err)
			return
		}
		for _, pid := range pids {
			s.log.Warn("terminating stray process", "role", role, "pid", pid, "pattern", pat)
			_ = process.Terminate(pid, s.stopWait)
		}
	}
}

// Restart stops the role, pauses briefly, and starts it again. Stop is
// synchronous, so no overlap window exists between the two instances.
func (s *Supervisor) Restart(role Role) error {
	if err := s.Stop(role); err != nil {
		return err
	}
	time.Sleep(s.pause)
	return s.Start(role)
}

// Status reports liveness from the process table. The PID file only refines
// which matching PID is ours and when it started.
func (s *Supervisor) Status(role Role) Status {
	st := Status{Role: role}
	sp := s.spec(role)
	for _, pat := range sp.Patterns {
		pids, err := (detector.PatternDetector{Pattern: pat}).FindPIDs()
		if err != nil || len(pids) == 0 {
			continue
		}
		st.Running = true
		st.PID = pids[0]
		st.DetectedBy = "pattern:" + pat
		break
	}
	if !st.Running {
		return st
	}
	// The record only refines uptime when the start-time guard confirms it
	// still describes the process we matched.
	if pid, meta, err := process.ReadPIDFile(s.PIDFile(role)); err == nil {
		if pid == st.PID && meta != nil && meta.StartedUnix > 0 {
			if alive, _ := (detector.PIDFileDetector{Path: s.PIDFile(role)}).Alive(); alive {
				st.Uptime = time.Since(time.Unix(meta.StartedUnix, 0)).Round(time.Second)
			}
		}
	}
	if st.Uptime == 0 {
		if p, err := gopsproc.NewProcess(int32(st.PID)); err == nil {
			if ms, err := p.CreateTime(); err == nil && ms > 0 {
				st.Uptime = time.Since(time.UnixMilli(ms)).Round(time.Second)
			}
		}
	}
	return st
}

// StatusAll reports every managed role.
func (s *Supervisor) StatusAll() []Status {
	out := make([]Status, 0, len(Roles()))
	for _, r := range Roles() {
		out = append(out, s.Status(r))
	}
	return out
}
