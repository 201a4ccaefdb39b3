package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/popularity"
	"github.com/crosschart/crosschart/internal/repositories"
	"github.com/crosschart/crosschart/internal/shared"
	"github.com/urfave/cli/v3"
)

// CollectPopularity runs one popularity collection batch over the tracks in
// the latest combined playlists, one job per (track, source) with a URL.
func (r *Runner) CollectPopularity(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	tracks, err := r.workSet(cmd, config, db)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return r.writePlainln("No tracks to collect; run the ETL first")
	}

	fetchers, err := r.buildFetchers(ctx, config)
	if err != nil {
		return err
	}

	collector := popularity.NewCollector(r.logger, repositories.NewSampleRepository(db), fetchers,
		popularity.Options{
			Workers:          config.Popularity.Workers,
			RateLimit:        config.Popularity.RateLimit,
			CheckEvery:       config.Popularity.CheckEvery,
			MinSampleSize:    config.Popularity.MinSampleSize,
			FailureThreshold: config.Popularity.FailureThreshold,
			RateLimitShare:   config.Popularity.RateLimitShare,
		})

	summary, err := collector.Collect(ctx, collector.BuildJobs(tracks))
	if summary != nil {
		summary.Log(r.logger)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary, cmd.Bool("pretty"))
	}
	return r.writePlainln("Collected popularity for %d jobs across %d sources",
		summary.Processed, len(summary.Sources))
}

// workSet loads the tracks to sample. Defaults to every track referenced by a
// combined playlist; --genre narrows to one genre, --all samples the whole catalog.
func (r *Runner) workSet(cmd *cli.Command, config *shared.Config, db *sql.DB) ([]*models.Track, error) {
	trackRepo := repositories.NewTrackRepository(db)

	if cmd.Bool("all") {
		return trackRepo.List()
	}

	genres := config.Genres
	if genre := cmd.String("genre"); genre != "" {
		genres = []string{genre}
	}

	aggregateRepo := repositories.NewAggregateRepository(db)
	seen := make(map[string]bool)
	var tracks []*models.Track
	for _, genre := range genres {
		entries, err := aggregateRepo.ListByGenre(genre)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if seen[entry.ISRC] {
				continue
			}
			seen[entry.ISRC] = true

			track, err := trackRepo.Get(entry.ISRC)
			if errors.Is(err, shared.ErrNotFound) {
				r.logger.Warn("combined entry has no track record", "isrc", entry.ISRC, "genre", genre)
				continue
			}
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

// buildFetchers wires a retrying fetcher per source with configured credentials.
func (r *Runner) buildFetchers(ctx context.Context, config *shared.Config) ([]popularity.Fetcher, error) {
	maxAttempts := config.Popularity.MaxAttempts
	var fetchers []popularity.Fetcher

	if config.Popularity.SpotifyClientID != "" && config.Popularity.SpotifySecret != "" {
		spotify := popularity.NewSpotifyFetcher(ctx,
			config.Popularity.SpotifyClientID, config.Popularity.SpotifySecret)
		fetchers = append(fetchers, popularity.WithRetries(spotify, maxAttempts, time.Second, r.logger))
	} else {
		r.logger.Warn("spotify credentials not configured, skipping source")
	}

	if config.Popularity.YouTubeAPIKey != "" {
		youtube := popularity.NewYouTubeFetcher(config.Popularity.YouTubeAPIKey, r.httpClient)
		fetchers = append(fetchers, popularity.WithRetries(youtube, maxAttempts, time.Second, r.logger))
	} else {
		r.logger.Warn("youtube api key not configured, skipping source")
	}

	if len(fetchers) == 0 {
		return nil, fmt.Errorf("%w: no popularity source credentials configured", shared.ErrMissingConfig)
	}
	return fetchers, nil
}

func popularityCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "popularity",
		Usage: "Collect per-source popularity counts",
		Commands: []*cli.Command{
			{
				Name:  "collect",
				Usage: "Sample current popularity for combined playlist tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to TOML config file",
					},
					&cli.StringFlag{
						Name:    "genre",
						Aliases: []string{"g"},
						Usage:   "Only sample tracks from this genre's combined playlist",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Sample every cataloged track instead of combined playlists",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit the batch summary as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.CollectPopularity,
			},
		},
	}
}
