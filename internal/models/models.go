package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/crosschart/crosschart/internal/shared"
)

// Service identifies a streaming service that publishes genre playlists.
type Service string

const (
	ServiceSpotify    Service = "spotify"
	ServiceAppleMusic Service = "apple_music"
	ServiceSoundCloud Service = "soundcloud"
	ServiceYouTube    Service = "youtube"
)

// PlaylistServices lists the services that contribute ranked playlists.
// YouTube carries track URLs and popularity counts but publishes no genre charts.
var PlaylistServices = []Service{ServiceSpotify, ServiceAppleMusic, ServiceSoundCloud}

// ParseService maps a configured service name onto a known [Service].
func ParseService(name string) (Service, error) {
	switch Service(name) {
	case ServiceSpotify, ServiceAppleMusic, ServiceSoundCloud, ServiceYouTube:
		return Service(name), nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownService, name)
	}
}

// Source identifies a popularity data source sampled by the collector.
type Source string

const (
	SourceSpotify Source = "spotify"
	SourceYouTube Source = "youtube"
)

// ParseSource maps a configured source name onto a known [Source].
func ParseSource(name string) (Source, error) {
	switch Source(name) {
	case SourceSpotify, SourceYouTube:
		return Source(name), nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownSource, name)
	}
}

// isrcPattern matches the ISRC shape: 2 letters, 3 alphanumerics, 7 digits.
var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{7}$`)

// ValidISRC reports whether s is a well-formed ISRC.
func ValidISRC(s string) bool {
	return isrcPattern.MatchString(s)
}

// NormalizedEntry is one ranked playlist row after service-specific parsing.
// Position is the upstream rank (1 = first).
type NormalizedEntry struct {
	Position      int
	ISRC          string
	Name          string
	Artist        string
	URL           string
	AlbumCoverURL string
}

// Validate checks that the entry carries the fields the resolver requires.
func (e NormalizedEntry) Validate() error {
	if e.Position < 1 {
		return fmt.Errorf("position must be >= 1, got %d", e.Position)
	}
	if !ValidISRC(e.ISRC) {
		return fmt.Errorf("malformed ISRC %q", e.ISRC)
	}
	if e.Name == "" {
		return fmt.Errorf("missing track name")
	}
	if e.Artist == "" {
		return fmt.Errorf("missing artist name")
	}
	return nil
}

// Track is the single merged record representing one recording across all services.
// ISRC is immutable once the track is created; all other fields are filled by
// the catalog merge operation.
type Track struct {
	ISRC          string
	Name          string
	ArtistName    string
	AlbumName     string
	AlbumCoverURL string
	ServiceURLs   map[Service]string
}

// NewTrack creates an empty canonical track keyed by isrc.
func NewTrack(isrc string) *Track {
	return &Track{
		ISRC:        isrc,
		ServiceURLs: make(map[Service]string),
	}
}

// URL returns the track's URL on the given service, or "" if unknown.
func (t *Track) URL(service Service) string {
	if t.ServiceURLs == nil {
		return ""
	}
	return t.ServiceURLs[service]
}

// PlacementRecord is the rank one track held in one service's playlist for one
// genre at collection time. Immutable once written.
type PlacementRecord struct {
	Service  Service
	Genre    string
	ISRC     string
	Position int
}

// AggregateEntry is one row of a genre's combined playlist, derived from
// placement records for tracks that chart on at least two services.
type AggregateEntry struct {
	Genre         string
	ISRC          string
	Position      int             // Final combined-playlist rank (1 = first)
	RawRank       int             // Position on the tie-break service
	SourceService Service         // Service whose position supplied RawRank
	Sources       map[Service]int // Every service's position for this track
}

// PopularitySample is one point of a track's popularity time series on one
// source. One sample exists per (ISRC, Source, RecordedDate); a later write for
// the same key replaces the earlier one.
type PopularitySample struct {
	ISRC         string
	Source       Source
	RecordedDate time.Time
	Count        int64
	Delta        int64
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
