// package pipeline orchestrates one ETL run: raw payloads flow through the
// normalizer and resolver into the catalog and placement set, the aggregator
// derives each genre's combined playlist, and the results are persisted as a
// full replacement of the previous run.
//
// Long-running operations emit progress updates via channels for non-blocking
// status reporting to the CLI layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/aggregator"
	"github.com/crosschart/crosschart/internal/catalog"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/normalizer"
	"github.com/crosschart/crosschart/internal/resolver"
	"github.com/crosschart/crosschart/internal/shared"
)

// PayloadSource supplies the raw, service-shaped playlist payload for one
// (service, genre) pair. Returns [shared.ErrNotFound] when the service
// reported no data for the genre.
type PayloadSource interface {
	RawPlaylist(ctx context.Context, service models.Service, genre string) ([]byte, error)
}

// Stores groups the persistence surfaces the pipeline writes to.
type Stores struct {
	Tracks     TrackWriter
	Placements PlacementWriter
	Aggregates AggregateWriter
}

// TrackWriter persists the canonical track set for a run.
type TrackWriter interface {
	ReplaceAll(tracks []*models.Track) error
}

// PlacementWriter persists the placement set for a run.
type PlacementWriter interface {
	ReplaceAll(placements []models.PlacementRecord) error
}

// AggregateWriter persists one genre's combined playlist.
type AggregateWriter interface {
	ReplaceForGenre(genre string, entries []models.AggregateEntry) error
}

// BatchResult summarizes one (service, genre) batch.
type BatchResult struct {
	Service models.Service
	Genre   string
	Entries int  // Normalized entries fed to the resolver
	Missing bool // Service reported no data for the genre
}

// RunResult contains all data from a full ETL run.
type RunResult struct {
	Batches    []BatchResult
	Tracks     int // Canonical tracks after resolution
	Placements int // Placement records written

	// Combined holds each genre's combined playlist.
	Combined map[string][]models.AggregateEntry
}

// Pipeline wires the ETL stages together for one run.
type Pipeline struct {
	logger     *log.Logger
	source     PayloadSource
	normalizer *normalizer.Normalizer
	aggregator *aggregator.Aggregator
	stores     Stores
	genres     []string
}

// New creates a Pipeline over the given payload source and stores.
func New(logger *log.Logger, source PayloadSource, agg *aggregator.Aggregator, stores Stores, genres []string) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		logger:     logger,
		source:     source,
		normalizer: normalizer.New(logger),
		aggregator: agg,
		stores:     stores,
		genres:     genres,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never blocks execution.
func (p *Pipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes a full ETL run: normalize and resolve every (service, genre)
// batch, aggregate each genre, then persist tracks, placements and combined
// playlists as a full replacement of the previous run.
//
// A service with no payload for a genre contributes nothing and the run
// continues; a validation or configuration failure stops the run before any
// store is touched.
func (p *Pipeline) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	result := &RunResult{Combined: make(map[string][]models.AggregateEntry)}

	cat := catalog.New(p.logger)
	res := resolver.New(p.logger, cat)

	total := len(p.genres) * len(models.PlaylistServices)
	step := 0

	for _, genre := range p.genres {
		for _, service := range models.PlaylistServices {
			step++
			p.sendProgress(progress, resolveUpdate(step, total, service, genre))

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			batch := BatchResult{Service: service, Genre: genre}

			payload, err := p.source.RawPlaylist(ctx, service, genre)
			if errors.Is(err, shared.ErrNotFound) {
				p.logger.Warn("no playlist reported", "service", service, "genre", genre)
				batch.Missing = true
				result.Batches = append(result.Batches, batch)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load %s/%s payload: %w", service, genre, err)
			}

			entries, err := p.normalizer.Normalize(service, payload)
			if err != nil {
				return nil, fmt.Errorf("failed to normalize %s/%s: %w", service, genre, err)
			}

			if err := res.ResolveBatch(service, genre, entries); err != nil {
				return nil, err
			}

			batch.Entries = len(entries)
			result.Batches = append(result.Batches, batch)
		}
	}

	result.Tracks = cat.Len()
	result.Placements = len(res.Placements())

	for i, genre := range p.genres {
		p.sendProgress(progress, aggregateUpdate(i+1, len(p.genres), genre))
		result.Combined[genre] = p.aggregator.Aggregate(genre, res.PlacementsForGenre(genre))
	}

	p.sendProgress(progress, persistUpdate(1, 3))
	if err := p.stores.Tracks.ReplaceAll(cat.Tracks()); err != nil {
		return nil, fmt.Errorf("failed to persist tracks: %w", err)
	}

	p.sendProgress(progress, persistUpdate(2, 3))
	if err := p.stores.Placements.ReplaceAll(res.Placements()); err != nil {
		return nil, fmt.Errorf("failed to persist placements: %w", err)
	}

	p.sendProgress(progress, persistUpdate(3, 3))
	for _, genre := range p.genres {
		if err := p.stores.Aggregates.ReplaceForGenre(genre, result.Combined[genre]); err != nil {
			return nil, fmt.Errorf("failed to persist combined playlist for %s: %w", genre, err)
		}
	}

	p.logger.Info("run complete",
		"tracks", result.Tracks, "placements", result.Placements, "genres", len(p.genres))
	return result, nil
}
