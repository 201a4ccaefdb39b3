// package aggregator computes a genre's combined playlist from placement records.
//
// A track is eligible for the combined playlist only when it charts on at
// least two services. Its aggregate rank is the position it held on the
// highest-priority service that placed it; ties in the final ordering keep
// first-sighting order so identical input always produces identical output.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// Aggregator computes combined playlists using a fixed service priority order.
type Aggregator struct {
	logger   *log.Logger
	priority []models.Service
}

// New creates an Aggregator with the given tie-break priority order, highest first.
// The list must be non-empty and free of duplicates and unknown services.
func New(logger *log.Logger, priority []string) (*Aggregator, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if len(priority) == 0 {
		return nil, fmt.Errorf("%w: priority list is empty", shared.ErrInvalidPriority)
	}

	seen := make(map[models.Service]bool, len(priority))
	services := make([]models.Service, 0, len(priority))
	for _, name := range priority {
		service, err := models.ParseService(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPriority, err)
		}
		if seen[service] {
			return nil, fmt.Errorf("%w: duplicate service %q", shared.ErrInvalidPriority, service)
		}
		seen[service] = true
		services = append(services, service)
	}

	return &Aggregator{logger: logger, priority: services}, nil
}

// group collects one ISRC's positions across services within a genre.
type group struct {
	isrc    string
	sources map[models.Service]int
	rawRank int
	service models.Service
}

// Aggregate computes the combined playlist for one genre from its placement
// records. An empty input yields an empty playlist, not an error.
func (a *Aggregator) Aggregate(genre string, placements []models.PlacementRecord) []models.AggregateEntry {
	byISRC := make(map[string]*group)
	var order []*group

	for _, record := range placements {
		if record.Genre != genre {
			continue
		}
		g, ok := byISRC[record.ISRC]
		if !ok {
			g = &group{isrc: record.ISRC, sources: make(map[models.Service]int)}
			byISRC[record.ISRC] = g
			order = append(order, g)
		}
		g.sources[record.Service] = record.Position
	}

	// Cross-service corroboration: single-service tracks are not eligible.
	eligible := make([]*group, 0, len(order))
	for _, g := range order {
		if len(g.sources) < 2 {
			continue
		}
		if !a.selectRank(g) {
			a.logger.Warn("no priority service placed track, skipping",
				"genre", genre, "isrc", g.isrc)
			continue
		}
		eligible = append(eligible, g)
	}

	// Stable sort keeps first-sighting order between equal raw ranks.
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].rawRank < eligible[j].rawRank
	})

	entries := make([]models.AggregateEntry, 0, len(eligible))
	for i, g := range eligible {
		sources := make(map[models.Service]int, len(g.sources))
		for service, position := range g.sources {
			sources[service] = position
		}
		entries = append(entries, models.AggregateEntry{
			Genre:         genre,
			ISRC:          g.isrc,
			Position:      i + 1,
			RawRank:       g.rawRank,
			SourceService: g.service,
			Sources:       sources,
		})
	}

	a.logger.Info("aggregated genre", "genre", genre, "candidates", len(order), "combined", len(entries))
	return entries
}

// selectRank walks the priority order and records the first present service's
// position as the group's raw aggregate rank. Returns false when no service in
// the priority order placed the track.
func (a *Aggregator) selectRank(g *group) bool {
	for _, service := range a.priority {
		if position, ok := g.sources[service]; ok {
			g.rawRank = position
			g.service = service
			return true
		}
	}
	return false
}
