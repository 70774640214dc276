package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoRequirements means there is nothing to install from.
var ErrNoRequirements = errors.New("requirements.txt not found")

// Installer runs the application's dependency installation as an opaque
// step: the orchestrator only cares whether it succeeded.
type Installer struct {
	workDir string
	log     *slog.Logger
}

func New(workDir string, log *slog.Logger) *Installer {
	if log == nil {
		log = slog.Default()
	}
	return &Installer{workDir: workDir, log: log}
}

// Install runs pip against requirements.txt, attached so the operator sees
// progress. Exit status propagates unmodified.
func (i *Installer) Install(ctx context.Context) error {
	req := filepath.Join(i.workDir, "requirements.txt")
	if _, err := os.Stat(req); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w in %s", ErrNoRequirements, i.workDir)
		}
		return err
	}
	i.log.Info("installing application dependencies", "requirements", req)
	// #nosec G204
	cmd := exec.CommandContext(ctx, "pip3", "install", "-r", req)
	cmd.Dir = i.workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("dependency installation failed: %w", err)
	}
	return nil
}
