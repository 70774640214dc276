package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/melodia-bot/maestro"
	"github.com/melodia-bot/maestro/internal/logger"
)

func main() {
	logger.Setup(slog.LevelInfo)

	workDir := os.Getenv("MAESTRO_WORKDIR")
	cfg, err := maestro.LoadConfig(workDir)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c := newCommand(cfg)
	defer c.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := buildRoot(c).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the root command. Subcommands come straight from the
// action registry; invoking the binary with no arguments opens the menu.
func buildRoot(c *command) *cobra.Command {
	root := &cobra.Command{
		Use:   "maestro",
		Short: "Deployment orchestrator for the music bot and its web process",
		Long: `Maestro deploys and supervises the two-process music bot application:
the Telegram worker (bot) and the HTTP process (web), together with their
local MongoDB and Redis services.

Examples:
  maestro deploy            # full deployment sequence
  maestro status            # process table view plus web health
  maestro logs error        # follow the shared error stream
  maestro                   # interactive menu`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd.Context(), c)
		},
	}
	for _, a := range c.registry() {
		root.AddCommand(createActionCommand(a))
	}
	return root
}

func createActionCommand(a action) *cobra.Command {
	return &cobra.Command{
		Use:   a.usage,
		Short: a.short,
		Args:  a.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args)
		},
	}
}
