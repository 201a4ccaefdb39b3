package main

import (
	"context"

	"github.com/crosschart/crosschart/internal/aggregator"
	"github.com/crosschart/crosschart/internal/cache"
	"github.com/crosschart/crosschart/internal/pipeline"
	"github.com/crosschart/crosschart/internal/repositories"
	"github.com/urfave/cli/v3"
)

// RunETL executes a full ETL run: load raw payloads, normalize, resolve,
// aggregate every configured genre, and replace the previous run's results.
func (r *Runner) RunETL(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	agg, err := aggregator.New(r.logger, config.Services.Priority)
	if err != nil {
		return err
	}

	var source pipeline.PayloadSource = pipeline.DirectorySource{Root: cmd.String("input")}
	if cmd.Bool("cached") {
		providerCache, err := cache.New(config.Redis, r.logger)
		if err != nil {
			return err
		}
		defer providerCache.Close()
		source = pipeline.CachedSource{Cache: providerCache, Inner: source, Logger: r.logger}
	}

	stores := pipeline.Stores{
		Tracks:     repositories.NewTrackRepository(db),
		Placements: repositories.NewPlacementRepository(db),
		Aggregates: repositories.NewAggregateRepository(db),
	}

	progress := make(chan pipeline.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message)
		}
	}()

	result, err := pipeline.New(r.logger, source, agg, stores, config.Genres).Run(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	missing := 0
	for _, batch := range result.Batches {
		if batch.Missing {
			missing++
		}
	}
	return r.writePlainln("Run complete: %d tracks, %d placements, %d genres (%d batches missing)",
		result.Tracks, result.Placements, len(result.Combined), missing)
}

// AggregateETL recomputes combined playlists from the placements already in
// the database, without refetching or re-resolving anything. Useful after a
// priority order change.
func (r *Runner) AggregateETL(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	agg, err := aggregator.New(r.logger, config.Services.Priority)
	if err != nil {
		return err
	}

	placementRepo := repositories.NewPlacementRepository(db)
	aggregateRepo := repositories.NewAggregateRepository(db)

	genres := config.Genres
	if genre := cmd.String("genre"); genre != "" {
		genres = []string{genre}
	}

	total := 0
	for _, genre := range genres {
		placements, err := placementRepo.ListByGenre(genre)
		if err != nil {
			return err
		}

		entries := agg.Aggregate(genre, placements)
		if err := aggregateRepo.ReplaceForGenre(genre, entries); err != nil {
			return err
		}
		total += len(entries)
	}

	return r.writePlainln("Recomputed %d combined entries across %d genres", total, len(genres))
}

func etlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "etl",
		Usage: "Run the playlist aggregation pipeline",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Normalize, resolve and aggregate all configured genres",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to TOML config file",
					},
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Value:   "payloads",
						Usage:   "Directory of raw <service>_<genre>.json payloads",
					},
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Serve payloads through the redis provider cache",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit the run result as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.RunETL,
			},
			{
				Name:  "aggregate",
				Usage: "Recompute combined playlists from stored placements",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to TOML config file",
					},
					&cli.StringFlag{
						Name:    "genre",
						Aliases: []string{"g"},
						Usage:   "Only recompute this genre",
					},
				},
				Action: r.AggregateETL,
			},
		},
	}
}
