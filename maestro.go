package maestro

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/melodia-bot/maestro/internal/backup"
	"github.com/melodia-bot/maestro/internal/bootstrap"
	"github.com/melodia-bot/maestro/internal/config"
	"github.com/melodia-bot/maestro/internal/health"
	"github.com/melodia-bot/maestro/internal/installer"
	"github.com/melodia-bot/maestro/internal/journal"
	"github.com/melodia-bot/maestro/internal/logger"
	"github.com/melodia-bot/maestro/internal/prereq"
	"github.com/melodia-bot/maestro/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Role = supervisor.Role

type Status = supervisor.Status

type Service = bootstrap.Service

type BootstrapState = bootstrap.State

type PrereqReport = prereq.Report

type HealthResult = health.Result

type JournalEvent = journal.Event

const (
	RoleBot = supervisor.RoleBot
	RoleWeb = supervisor.RoleWeb
)

// LoadConfig reads the immutable configuration snapshot for workDir.
func LoadConfig(workDir string) (Config, error) { return config.Load(workDir) }

// Roles returns the managed roles in start order.
func Roles() []Role { return supervisor.Roles() }

// ValidRole reports whether name denotes a managed role.
func ValidRole(name string) bool { return supervisor.ValidRole(name) }

// Orchestrator is a thin facade over the internal components. It provides a
// stable public API for embedding.
type Orchestrator struct {
	cfg config.Config
	sup *supervisor.Supervisor
}

func New(cfg Config) *Orchestrator {
	streams := logger.Streams{Dir: filepath.Join(cfg.WorkDir, "logs")}
	return &Orchestrator{
		cfg: cfg,
		sup: supervisor.New(cfg, streams, slog.Default()),
	}
}

func (o *Orchestrator) Start(role Role) error   { return o.sup.Start(role) }
func (o *Orchestrator) Stop(role Role) error    { return o.sup.Stop(role) }
func (o *Orchestrator) Restart(role Role) error { return o.sup.Restart(role) }
func (o *Orchestrator) Status(role Role) Status { return o.sup.Status(role) }
func (o *Orchestrator) StatusAll() []Status     { return o.sup.StatusAll() }

// CheckPrerequisites verifies the host has the external tools the deployment
// needs.
func (o *Orchestrator) CheckPrerequisites() (PrereqReport, error) {
	return prereq.Check(o.cfg)
}

// EnsureDirs creates the working directory layout.
func (o *Orchestrator) EnsureDirs() error { return bootstrap.EnsureDirs(o.cfg.WorkDir) }

// Services lists the dependent stateful services derived from configuration.
func (o *Orchestrator) Services() []Service { return bootstrap.ServicesFor(o.cfg) }

// EnsureService makes sure one dependent local service is running.
func (o *Orchestrator) EnsureService(ctx context.Context, svc Service) (BootstrapState, error) {
	return bootstrap.New(nil).EnsureRunning(ctx, svc)
}

// SetupIndexes connects to the document store and cache and provisions the
// schema the application expects.
func (o *Orchestrator) SetupIndexes(ctx context.Context) error {
	return bootstrap.SetupIndexes(ctx, o.cfg)
}

// InstallDependencies runs the application's dependency installation.
func (o *Orchestrator) InstallDependencies(ctx context.Context) error {
	return installer.New(o.cfg.WorkDir, nil).Install(ctx)
}

// ProbeWebHealth probes the managed web process's health endpoint.
func (o *Orchestrator) ProbeWebHealth(ctx context.Context) HealthResult {
	return health.New(o.sup, o.cfg.Port).Probe(ctx)
}

// Backup creates a point-in-time backup archive and returns its path.
func (o *Orchestrator) Backup(ctx context.Context) (string, error) {
	return backup.New(o.cfg, nil).Create(ctx)
}
