package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/shared"
)

// SetupConfig writes the default configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Wrote %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set goodreads.user_id and add your libraries under [[targets]]\n")
	r.writePlain("2. Run 'libbyreads setup database'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// The database path comes from --config when that file exists, otherwise from the
// configuration the runner was started with.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using current settings", "error", err)
			config = r.config
		}
	} else {
		r.logger.Info("config file not found, using current settings", "path", configPath)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if cmd.Bool("status") {
		states, err := shared.MigrationStatus(db)
		if err != nil {
			return err
		}
		for _, s := range states {
			mark := " "
			if s.Applied {
				mark = "✓"
			}
			r.writePlain("%s %04d %s\n", mark, s.Version, s.Name)
		}
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}
