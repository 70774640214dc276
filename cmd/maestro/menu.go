package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/melodia-bot/maestro/internal/logger"
)

const menuExit = "exit"

// runMenu presents the numbered operator menu and dispatches to the same
// handlers as the subcommands. A failed action is reported and the menu comes
// back; only Exit or an aborted prompt leaves the loop.
func runMenu(ctx context.Context, c *command) error {
	actions := c.registry()
	for {
		opts := make([]huh.Option[string], 0, len(actions)+1)
		for i, a := range actions {
			opts = append(opts, huh.NewOption(fmt.Sprintf("%2d) %s", i+1, a.short), a.name))
		}
		opts = append(opts, huh.NewOption(fmt.Sprintf("%2d) Exit", len(actions)+1), menuExit))

		var choice string
		sel := huh.NewSelect[string]().
			Title("maestro").
			Description("deployment orchestrator").
			Options(opts...).
			Value(&choice)
		if err := huh.NewForm(huh.NewGroup(sel)).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		if choice == menuExit {
			return nil
		}
		for _, a := range actions {
			if a.name != choice {
				continue
			}
			if err := a.run(ctx, nil); err != nil {
				fmt.Fprintf(os.Stderr, "%s failed: %v\n", a.name, err)
			}
			break
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// pickStream prompts for a log stream when none was given on the command line.
func pickStream() (string, error) {
	var stream string
	sel := huh.NewSelect[string]().
		Title("Which log stream?").
		Options(
			huh.NewOption("bot", logger.StreamBot),
			huh.NewOption("web", logger.StreamWeb),
			huh.NewOption("error", logger.StreamError),
		).
		Value(&stream)
	if err := huh.NewForm(huh.NewGroup(sel)).Run(); err != nil {
		return "", err
	}
	return stream, nil
}

// confirm asks a yes/no question.
func confirm(title string) (bool, error) {
	var ok bool
	q := huh.NewConfirm().Title(title).Value(&ok)
	if err := huh.NewForm(huh.NewGroup(q)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
