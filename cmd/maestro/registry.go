package main

import (
	"context"

	"github.com/spf13/cobra"
)

// action is one operator command. Both the cobra subcommands and the
// interactive menu are generated from the registry, so every entry point
// dispatches through the same handler.
type action struct {
	name  string
	usage string
	short string
	args  cobra.PositionalArgs
	run   func(ctx context.Context, args []string) error
}

// registry lists every action in display order.
func (c *command) registry() []action {
	noArgs := func(run func(context.Context) error) func(context.Context, []string) error {
		return func(ctx context.Context, _ []string) error { return run(ctx) }
	}
	return []action{
		{
			name:  "deploy",
			usage: "deploy",
			short: "Run the full deployment sequence",
			args:  cobra.NoArgs,
			run:   noArgs(c.Deploy),
		},
		{
			name:  "start",
			usage: "start [bot|web]",
			short: "Start managed processes",
			args:  cobra.MaximumNArgs(1),
			run:   c.Start,
		},
		{
			name:  "stop",
			usage: "stop [bot|web]",
			short: "Stop managed processes",
			args:  cobra.MaximumNArgs(1),
			run:   c.Stop,
		},
		{
			name:  "restart",
			usage: "restart [bot|web]",
			short: "Restart managed processes",
			args:  cobra.MaximumNArgs(1),
			run:   c.Restart,
		},
		{
			name:  "status",
			usage: "status",
			short: "Show process status and web health",
			args:  cobra.NoArgs,
			run:   noArgs(c.Status),
		},
		{
			name:  "backup",
			usage: "backup",
			short: "Create a backup archive",
			args:  cobra.NoArgs,
			run:   noArgs(c.Backup),
		},
		{
			name:  "logs",
			usage: "logs [bot|web|error]",
			short: "Follow a log stream",
			args:  cobra.MaximumNArgs(1),
			run:   c.Logs,
		},
		{
			name:  "session",
			usage: "session",
			short: "Generate a session credential",
			args:  cobra.NoArgs,
			run:   noArgs(c.Session),
		},
		{
			name:  "install",
			usage: "install",
			short: "Install application dependencies",
			args:  cobra.NoArgs,
			run:   noArgs(c.Install),
		},
		{
			name:  "setup-db",
			usage: "setup-db",
			short: "Bootstrap services and provision indexes",
			args:  cobra.NoArgs,
			run:   noArgs(c.SetupDB),
		},
	}
}
