package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"text/tabwriter"

	"github.com/melodia-bot/maestro"
	"github.com/melodia-bot/maestro/internal/journal"
	"github.com/melodia-bot/maestro/internal/logger"
	"github.com/melodia-bot/maestro/internal/tail"
)

// command bundles the loaded configuration with the orchestrator facade.
// Method-style handlers below are what both the cobra subcommands and the
// interactive menu dispatch to.
type command struct {
	cfg maestro.Config
	orc *maestro.Orchestrator
	jnl *journal.Journal // nil when the journal could not be opened
	log *slog.Logger
}

func newCommand(cfg maestro.Config) *command {
	c := &command{cfg: cfg, orc: maestro.New(cfg), log: slog.Default()}
	jnl, err := journal.Open(filepath.Join(cfg.WorkDir, "logs", "maestro.db"))
	if err != nil {
		c.log.Warn("operation journal unavailable", "error", err)
	} else {
		c.jnl = jnl
	}
	return c
}

func (c *command) close() {
	if c.jnl != nil {
		_ = c.jnl.Close()
	}
}

// record journals one operation outcome. Journal failures are logged and
// swallowed; the journal never fails an operation.
func (c *command) record(op, target string, opErr error, detail string) {
	if c.jnl == nil {
		return
	}
	ev := journal.Event{Operation: op, Target: target, Outcome: journal.OutcomeOK, Detail: detail}
	if opErr != nil {
		ev.Outcome = journal.OutcomeFailed
		ev.Detail = opErr.Error()
	}
	if err := c.jnl.Record(ev); err != nil {
		c.log.Warn("journal write failed", "operation", op, "error", err)
	}
}

// rolesFromArgs resolves an optional role argument. No argument means every
// managed role, in start order.
func rolesFromArgs(args []string) ([]maestro.Role, error) {
	if len(args) == 0 {
		return maestro.Roles(), nil
	}
	if !maestro.ValidRole(args[0]) {
		return nil, fmt.Errorf("unknown role %q (want bot or web)", args[0])
	}
	return []maestro.Role{maestro.Role(args[0])}, nil
}

// Deploy runs the full deployment sequence. Steps execute in order and the
// first failure aborts the rest; every step that ran is journaled.
func (c *command) Deploy(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"prerequisites", c.checkPrerequisites},
		{"directories", func(context.Context) error { return c.orc.EnsureDirs() }},
		{"dependencies", c.orc.InstallDependencies},
		{"services", c.ensureServices},
		{"session", c.provisionSession},
		{"indexes", c.orc.SetupIndexes},
		{"bot", func(context.Context) error { return c.orc.Start(maestro.RoleBot) }},
		{"web", func(context.Context) error { return c.orc.Start(maestro.RoleWeb) }},
	}
	for _, st := range steps {
		c.log.Info("deploy step", "step", st.name)
		if err := st.run(ctx); err != nil {
			c.record("deploy", st.name, err, "")
			return fmt.Errorf("deploy step %s: %w", st.name, err)
		}
	}
	c.record("deploy", "", nil, "all steps completed")
	fmt.Println("deployment complete")
	return nil
}

func (c *command) checkPrerequisites(context.Context) error {
	rep, err := c.orc.CheckPrerequisites()
	for _, t := range rep.Tools {
		state := "found"
		if !t.Found {
			state = "missing"
		}
		c.log.Info("prerequisite", "tool", t.Name, "state", state, "required", t.Required)
	}
	for _, feature := range rep.Degraded {
		c.log.Warn("feature degraded", "feature", feature)
	}
	return err
}

func (c *command) ensureServices(ctx context.Context) error {
	for _, svc := range c.orc.Services() {
		state, err := c.orc.EnsureService(ctx, svc)
		if err != nil {
			return err
		}
		c.log.Info("service ensured", "service", svc.Kind, "state", state)
	}
	return nil
}

// provisionSession offers to generate a session credential when none is
// configured. Declining (or a non-interactive terminal) degrades voice
// features but never blocks the deployment; an attempted generation that
// fails does.
func (c *command) provisionSession(ctx context.Context) error {
	if c.cfg.HasSession() {
		return nil
	}
	ok, err := confirm("SESSION_STRING is not set. Generate a session credential now?")
	if err != nil || !ok {
		c.log.Warn("continuing without session credential, voice features degraded; run 'maestro session' later")
		return nil
	}
	return c.Session(ctx)
}

// Start launches the given roles (all of them when args is empty).
func (c *command) Start(ctx context.Context, args []string) error {
	roles, err := rolesFromArgs(args)
	if err != nil {
		return err
	}
	for _, r := range roles {
		err := c.orc.Start(r)
		c.record("start", string(r), err, "")
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop terminates the given roles. With no argument every role stops, in
// reverse start order.
func (c *command) Stop(ctx context.Context, args []string) error {
	roles, err := rolesFromArgs(args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		for i, j := 0, len(roles)-1; i < j; i, j = i+1, j-1 {
			roles[i], roles[j] = roles[j], roles[i]
		}
	}
	for _, r := range roles {
		err := c.orc.Stop(r)
		c.record("stop", string(r), err, "")
		if err != nil {
			return err
		}
	}
	return nil
}

// Restart bounces the given roles one at a time.
func (c *command) Restart(ctx context.Context, args []string) error {
	roles, err := rolesFromArgs(args)
	if err != nil {
		return err
	}
	for _, r := range roles {
		err := c.orc.Restart(r)
		c.record("restart", string(r), err, "")
		if err != nil {
			return err
		}
	}
	return nil
}

// Status prints the process table view of each role, the web health verdict,
// and the most recent journaled operations.
func (c *command) Status(ctx context.Context) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tSTATE\tPID\tUPTIME\tDETECTED BY")
	for _, st := range c.orc.StatusAll() {
		state, pid, uptime := "stopped", "-", "-"
		if st.Running {
			state = "running"
			pid = fmt.Sprintf("%d", st.PID)
			if st.Uptime > 0 {
				uptime = st.Uptime.String()
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", st.Role, state, pid, uptime, st.DetectedBy)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	res := c.orc.ProbeWebHealth(ctx)
	fmt.Printf("\nweb health: %s", res.Verdict)
	if res.StatusCode != 0 {
		fmt.Printf(" (%d, %s)", res.StatusCode, res.Latency)
	}
	if res.Detail != "" {
		fmt.Printf(" - %s", res.Detail)
	}
	fmt.Println()

	if c.jnl != nil {
		events, err := c.jnl.Recent(5)
		if err == nil && len(events) > 0 {
			fmt.Println("\nrecent operations:")
			for _, ev := range events {
				line := fmt.Sprintf("  %s  %s", ev.At.Local().Format("2006-01-02 15:04:05"), ev.Operation)
				if ev.Target != "" {
					line += " " + ev.Target
				}
				line += "  " + ev.Outcome
				if ev.Detail != "" {
					line += "  " + ev.Detail
				}
				fmt.Println(line)
			}
		}
	}
	return nil
}

// Backup creates one backup archive and prints its path.
func (c *command) Backup(ctx context.Context) error {
	archive, err := c.orc.Backup(ctx)
	c.record("backup", "", err, archive)
	if err != nil {
		return err
	}
	fmt.Println(archive)
	return nil
}

// Logs follows one log stream until interrupted. A stream with no file yet
// fails immediately instead of waiting for it to appear.
func (c *command) Logs(ctx context.Context, args []string) error {
	var stream string
	if len(args) > 0 {
		stream = args[0]
	} else {
		var err error
		if stream, err = pickStream(); err != nil {
			return err
		}
	}
	if !logger.Valid(stream) {
		return fmt.Errorf("unknown log stream %q (want bot, web or error)", stream)
	}
	path := logger.Streams{Dir: filepath.Join(c.cfg.WorkDir, "logs")}.Path(stream)
	err := tail.Follow(ctx, path, os.Stdout, 10)
	if errors.Is(err, tail.ErrNoLogFile) {
		return fmt.Errorf("stream %q has produced no output yet: %w", stream, err)
	}
	return err
}

// Session runs the application's interactive session generator. An existing
// credential asks for confirmation before being regenerated.
func (c *command) Session(ctx context.Context) error {
	if c.cfg.HasSession() {
		ok, err := confirm("SESSION_STRING is already configured. Generate a new one?")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, "python3", "start_session.py")
	cmd.Dir = c.cfg.WorkDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	c.record("session", "", err, "")
	if err != nil {
		return fmt.Errorf("session generation failed: %w", err)
	}
	return nil
}

// Install runs dependency installation on its own.
func (c *command) Install(ctx context.Context) error {
	err := c.orc.InstallDependencies(ctx)
	c.record("install", "", err, "")
	return err
}

// SetupDB brings up local services and provisions the document store schema.
func (c *command) SetupDB(ctx context.Context) error {
	if err := c.ensureServices(ctx); err != nil {
		c.record("setup-db", "", err, "")
		return err
	}
	err := c.orc.SetupIndexes(ctx)
	c.record("setup-db", "", err, "")
	if err != nil {
		return err
	}
	fmt.Println("document store indexes and cache verified")
	return nil
}
