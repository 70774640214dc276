package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/melodia-bot/maestro/internal/config"
	"github.com/melodia-bot/maestro/internal/detector"
	"github.com/melodia-bot/maestro/internal/process"
)

// State describes the outcome of an ensure-running call.
type State string

const (
	// StateSkipped: the service endpoint is remote and assumed externally
	// available; this system never manages it.
	StateSkipped State = "skipped"
	// StateAlreadyRunning: a matching process or open port was found.
	StateAlreadyRunning State = "already-running"
	// StateStarted: the service was launched and became ready.
	StateStarted State = "started"
)

// Service is a dependent stateful service the managed processes rely on.
type Service struct {
	Kind    string // "mongodb" or "redis"
	Local   bool   // only local services are bootstrapped
	Addr    string // host:port probed for readiness; empty disables the probe
	Pattern string // process-table signature
	Command string // daemonizing launch command (the binary forks itself)
}

// ServicesFor derives the dependent services from configuration.
func ServicesFor(cfg config.Config) []Service {
	return []Service{
		{
			Kind:    "mongodb",
			Local:   cfg.MongoLocal(),
			Addr:    net.JoinHostPort("127.0.0.1", cfg.MongoPort()),
			Pattern: "mongod",
			Command: "mongod --fork --logpath logs/mongod.log",
		},
		{
			Kind:    "redis",
			Local:   cfg.RedisLocal(),
			Addr:    net.JoinHostPort("127.0.0.1", cfg.RedisPort()),
			Pattern: "redis-server",
			Command: fmt.Sprintf("redis-server --daemonize yes --port %s", cfg.RedisPort()),
		},
	}
}

// Bootstrapper performs idempotent ensure-running actions for local services.
type Bootstrapper struct {
	log *slog.Logger

	dialTimeout   time.Duration
	readyTimeout  time.Duration
	readyInterval time.Duration
	fallbackSleep time.Duration // only when no readiness address exists
}

func New(log *slog.Logger) *Bootstrapper {
	if log == nil {
		log = slog.Default()
	}
	return &Bootstrapper{
		log:           log,
		dialTimeout:   500 * time.Millisecond,
		readyTimeout:  5 * time.Second,
		readyInterval: 100 * time.Millisecond,
		fallbackSleep: 2 * time.Second,
	}
}

// SetTimings shortens the polling windows; zero values keep defaults.
func (b *Bootstrapper) SetTimings(readyTimeout, readyInterval, fallbackSleep time.Duration) {
	if readyTimeout > 0 {
		b.readyTimeout = readyTimeout
	}
	if readyInterval > 0 {
		b.readyInterval = readyInterval
	}
	if fallbackSleep > 0 {
		b.fallbackSleep = fallbackSleep
	}
}

// EnsureRunning makes sure a local service is up. Calling it again when the
// service already runs is a no-op. Remote services are skipped outright.
func (b *Bootstrapper) EnsureRunning(ctx context.Context, svc Service) (State, error) {
	if !svc.Local {
		b.log.Info("remote service assumed externally available", "service", svc.Kind)
		return StateSkipped, nil
	}
	if b.running(svc) {
		b.log.Info("service already running", "service", svc.Kind)
		return StateAlreadyRunning, nil
	}

	b.log.Info("starting service", "service", svc.Kind)
	sp := process.Spec{Role: svc.Kind, Command: svc.Command}
	cmd := sp.BuildCommand()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("launch %s: %w", svc.Kind, err)
	}

	if err := b.awaitReady(ctx, svc); err != nil {
		return "", err
	}
	return StateStarted, nil
}

// awaitReady polls the service's TCP endpoint until it accepts connections,
// bounded by readyTimeout. Services without an address fall back to a fixed
// settle delay, the best available substitute for a readiness signal.
func (b *Bootstrapper) awaitReady(ctx context.Context, svc Service) error {
	if svc.Addr == "" {
		select {
		case <-time.After(b.fallbackSleep):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	deadline := time.Now().Add(b.readyTimeout)
	for time.Now().Before(deadline) {
		if b.portOpen(svc.Addr) {
			return nil
		}
		select {
		case <-time.After(b.readyInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s did not become ready on %s within %s", svc.Kind, svc.Addr, b.readyTimeout)
}

func (b *Bootstrapper) running(svc Service) bool {
	if svc.Pattern != "" {
		if alive, _ := (detector.PatternDetector{Pattern: svc.Pattern}).Alive(); alive {
			return true
		}
	}
	return svc.Addr != "" && b.portOpen(svc.Addr)
}

func (b *Bootstrapper) portOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, b.dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// workDirs is the directory layout the managed application expects.
var workDirs = []string{"logs", "cache", "downloads", "backups"}

// EnsureDirs creates the working directory layout. Existing directories are
// fine; this runs on every deploy.
func EnsureDirs(root string) error {
	for _, d := range workDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
