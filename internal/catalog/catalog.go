// package catalog owns the canonical track entities for one ETL run.
//
// Tracks are keyed by ISRC; exactly one track exists per ISRC. Fields are
// populated through Merge, which only ever fills empty fields, so the first
// service to report a value wins and later services fill the gaps.
package catalog

import (
	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// Fields carries one service's contribution to a canonical track.
type Fields struct {
	Name          string
	ArtistName    string
	AlbumName     string
	AlbumCoverURL string
	URL           string
}

// Catalog is the in-memory canonical track store for a single run.
// A fresh run starts from an empty catalog; tracks are never deleted within a run.
type Catalog struct {
	logger *log.Logger
	tracks map[string]*models.Track
	order  []string
}

// New creates an empty Catalog.
func New(logger *log.Logger) *Catalog {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Catalog{
		logger: logger,
		tracks: make(map[string]*models.Track),
	}
}

// GetOrCreate returns the track for isrc, creating an empty one on first sighting.
func (c *Catalog) GetOrCreate(isrc string) *models.Track {
	if track, ok := c.tracks[isrc]; ok {
		return track
	}

	track := models.NewTrack(isrc)
	c.tracks[isrc] = track
	c.order = append(c.order, isrc)
	return track
}

// Get returns the track for isrc if it exists.
func (c *Catalog) Get(isrc string) (*models.Track, bool) {
	track, ok := c.tracks[isrc]
	return track, ok
}

// Merge applies one service's fields to a track, overwriting an attribute only
// if the track's current value is empty. The track's URL for the contributing
// service is recorded the same way.
func (c *Catalog) Merge(track *models.Track, service models.Service, fields Fields) {
	if track.Name == "" {
		track.Name = fields.Name
	}
	if track.ArtistName == "" {
		track.ArtistName = fields.ArtistName
	}
	if track.AlbumName == "" {
		track.AlbumName = fields.AlbumName
	}
	if track.AlbumCoverURL == "" {
		track.AlbumCoverURL = fields.AlbumCoverURL
	}
	if track.ServiceURLs == nil {
		track.ServiceURLs = make(map[models.Service]string)
	}
	if track.ServiceURLs[service] == "" && fields.URL != "" {
		track.ServiceURLs[service] = fields.URL
	}
}

// Tracks returns all tracks in first-sighting order.
func (c *Catalog) Tracks() []*models.Track {
	tracks := make([]*models.Track, 0, len(c.order))
	for _, isrc := range c.order {
		tracks = append(tracks, c.tracks[isrc])
	}
	return tracks
}

// Len returns the number of canonical tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}
