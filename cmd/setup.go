package main

import (
	"context"
	"fmt"

	"github.com/crosschart/crosschart/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the database schema by running embedded migrations,
// or rolls the most recent migration back with --rollback.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if cmd.Bool("write-config") {
		path := cmd.String("config")
		if path == "" {
			path = "config.toml"
		}
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
		r.logger.Info("wrote config file", "path", path)
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		return r.writePlainln("Rolled back most recent migration")
	}

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return r.writePlainln("Database ready at %s", config.Database.Path)
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the database schema and optional config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
			&cli.BoolFlag{
				Name:  "write-config",
				Usage: "Write the example config file before migrating",
			},
		},
		Action: r.SetupDatabase,
	}
}
