package main

import (
	"context"
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/cache"
	"github.com/crosschart/crosschart/internal/schedule"
	"github.com/urfave/cli/v3"
)

// CacheStatus reports the number of cached provider responses and whether the
// maintenance window is currently open.
func (r *Runner) CacheStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	guard := schedule.Guard{Cron: config.Schedule.Cron, WindowMinutes: config.Schedule.WindowMinutes}
	open, err := guard.Open(time.Now())
	if err != nil {
		return err
	}

	providerCache, err := cache.New(config.Redis, r.logger)
	if err != nil {
		return err
	}
	defer providerCache.Close()

	keys, err := providerCache.Count(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"keys":        keys,
			"window_open": open,
			"cron":        config.Schedule.Cron,
		}, cmd.Bool("pretty"))
	}

	state := "closed"
	if open {
		state = "open"
	}
	return r.writePlainln("Cached responses: %d (maintenance window %s, schedule %q)",
		keys, state, config.Schedule.Cron)
}

// ClearCache deletes cached provider responses. Outside the maintenance
// window the clear is refused unless --force is set; stale caches are cheaper
// than burned provider quota.
func (r *Runner) ClearCache(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if !cmd.Bool("force") {
		guard := schedule.Guard{Cron: config.Schedule.Cron, WindowMinutes: config.Schedule.WindowMinutes}
		open, err := guard.Open(time.Now())
		if err != nil {
			return err
		}
		if !open {
			return fmt.Errorf("maintenance window is closed (schedule %q, window %dm); use --force to clear anyway",
				config.Schedule.Cron, config.Schedule.WindowMinutes)
		}
	}

	providerCache, err := cache.New(config.Redis, r.logger)
	if err != nil {
		return err
	}
	defer providerCache.Close()

	deleted, err := providerCache.Clear(ctx)
	if err != nil {
		return err
	}

	return r.writePlainln("Cleared %d cached responses", deleted)
}

func cacheCommand(r *Runner) *cli.Command {
	configFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to TOML config file",
		}
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the provider response cache",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show cache size and maintenance window state",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Emit status as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.CacheStatus,
			},
			{
				Name:  "clear",
				Usage: "Delete cached provider responses",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Clear even when the maintenance window is closed",
					},
				},
				Action: r.ClearCache,
			},
		},
	}
}
