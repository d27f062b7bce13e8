package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/shared"
	"github.com/desertthunder/libbyreads/internal/tasks"
	"github.com/desertthunder/libbyreads/internal/ui"
)

// TUI launches the interactive shelf browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	path := r.config.Log.File
	if path == "" {
		path = "libbyreads.log"
	}
	fileLogger, f, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	cache, err := r.cache()
	if err != nil {
		return err
	}
	engine, err := r.engine()
	if err != nil {
		return err
	}
	targets, err := r.targets(nil)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Deps{
		Store:   cache,
		Checker: engine,
		Targets: targets,
		Run:     tasks.RunOptsFromConfig(r.config.Engine),
		Shelf:   cmd.String("shelf"),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
