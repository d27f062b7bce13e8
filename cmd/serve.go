package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/server"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

// Serve runs the availability API until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine()
	if err != nil {
		return err
	}
	targets, err := r.targets(nil)
	if err != nil {
		return err
	}

	host, port := r.config.Server.Host, r.config.Server.Port
	if h := cmd.String("host"); h != "" {
		host = h
	}
	if p := int(cmd.Int("port")); p > 0 {
		port = p
	}

	srv := server.New(server.Opts{
		Host:     host,
		Port:     port,
		Checker:  engine,
		Targets:  targets,
		Run:      tasks.RunOptsFromConfig(r.config.Engine),
		Logger:   r.logger,
		MaxBooks: int(cmd.Int("max-books")),
	})

	r.logger.Info("serving availability api", "addr", srv.Addr(), "targets", len(targets))
	return srv.Run(ctx)
}
