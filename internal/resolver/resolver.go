// package resolver turns normalized playlist entries into canonical tracks and
// placement records.
//
// Each (service, genre) batch is validated in full before any catalog mutation:
// a malformed entry rejects the whole batch, so a failed batch never leaves a
// partially ranked playlist behind.
package resolver

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/catalog"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// Resolver consumes normalized entry batches and records placements.
// It is the only writer of placement records for a run.
type Resolver struct {
	logger     *log.Logger
	catalog    *catalog.Catalog
	placements []models.PlacementRecord
}

// New creates a Resolver writing into the given catalog.
func New(logger *log.Logger, cat *catalog.Catalog) *Resolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Resolver{logger: logger, catalog: cat}
}

// ResolveBatch processes one (service, genre) batch: every entry is validated
// up front, then each entry upserts its canonical track, merges the service's
// fields and appends a placement record.
func (r *Resolver) ResolveBatch(service models.Service, genre string, entries []models.NormalizedEntry) error {
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("%w: %s/%s entry %d: %v", shared.ErrValidation, service, genre, i+1, err)
		}
	}

	for _, entry := range entries {
		track := r.catalog.GetOrCreate(entry.ISRC)
		r.catalog.Merge(track, service, catalog.Fields{
			Name:          entry.Name,
			ArtistName:    entry.Artist,
			AlbumCoverURL: entry.AlbumCoverURL,
			URL:           entry.URL,
		})

		r.placements = append(r.placements, models.PlacementRecord{
			Service:  service,
			Genre:    genre,
			ISRC:     entry.ISRC,
			Position: entry.Position,
		})
	}

	r.logger.Info("resolved batch", "service", service, "genre", genre, "entries", len(entries))
	return nil
}

// Placements returns every placement recorded so far, in insertion order.
func (r *Resolver) Placements() []models.PlacementRecord {
	return r.placements
}

// PlacementsForGenre returns the placements recorded for one genre, in insertion order.
func (r *Resolver) PlacementsForGenre(genre string) []models.PlacementRecord {
	var records []models.PlacementRecord
	for _, record := range r.placements {
		if record.Genre == genre {
			records = append(records, record)
		}
	}
	return records
}
