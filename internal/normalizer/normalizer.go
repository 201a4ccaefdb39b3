package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// Normalizer parses raw per-service playlist payloads into [models.NormalizedEntry] sequences.
type Normalizer struct {
	logger *log.Logger
}

// New creates a Normalizer with the given logger.
func New(logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Normalizer{logger: logger}
}

// Normalize parses one service's raw playlist payload and returns its entries
// in upstream rank order. Entries without a usable ISRC are dropped and logged;
// unknown services fail with [shared.ErrUnknownService].
func (n *Normalizer) Normalize(service models.Service, payload []byte) ([]models.NormalizedEntry, error) {
	switch service {
	case models.ServiceSpotify:
		return n.normalizeSpotify(payload)
	case models.ServiceAppleMusic:
		return n.normalizeAppleMusic(payload)
	case models.ServiceSoundCloud:
		return n.normalizeSoundCloud(payload)
	default:
		return nil, fmt.Errorf("%w: cannot normalize payload for %q", shared.ErrUnknownService, service)
	}
}

type spotifyPayload struct {
	Items []struct {
		Track *struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			ExternalIDs struct {
				ISRC string `json:"isrc"`
			} `json:"external_ids"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
			Album struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"track"`
	} `json:"items"`
}

func (n *Normalizer) normalizeSpotify(payload []byte) ([]models.NormalizedEntry, error) {
	var raw spotifyPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse Spotify payload: %w", err)
	}

	var entries []models.NormalizedEntry
	for i, item := range raw.Items {
		if item.Track == nil {
			n.logger.Warn("skipping empty Spotify playlist item", "position", i+1)
			continue
		}

		isrc := item.Track.ExternalIDs.ISRC
		if isrc == "" {
			n.logger.Warn("dropping Spotify entry without ISRC", "position", i+1, "name", item.Track.Name)
			continue
		}

		artists := make([]string, 0, len(item.Track.Artists))
		for _, artist := range item.Track.Artists {
			artists = append(artists, artist.Name)
		}

		entry := models.NormalizedEntry{
			Position: i + 1,
			ISRC:     isrc,
			Name:     item.Track.Name,
			Artist:   strings.Join(artists, ", "),
			URL:      item.Track.ExternalURLs.Spotify,
		}
		if len(item.Track.Album.Images) > 0 {
			entry.AlbumCoverURL = item.Track.Album.Images[0].URL
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

type appleMusicTrack struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Link   string `json:"link"`
	ISRC   string `json:"isrc"`
}

type appleMusicPayload struct {
	AlbumDetails map[string]appleMusicTrack `json:"album_details"`
}

// normalizeAppleMusic parses the Apple Music export, which keys tracks by their
// zero-based chart index as a string. Non-numeric keys carry chart metadata and
// are ignored.
func (n *Normalizer) normalizeAppleMusic(payload []byte) ([]models.NormalizedEntry, error) {
	var raw appleMusicPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse Apple Music payload: %w", err)
	}

	indices := make([]int, 0, len(raw.AlbumDetails))
	for key := range raw.AlbumDetails {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var entries []models.NormalizedEntry
	for _, idx := range indices {
		track := raw.AlbumDetails[strconv.Itoa(idx)]

		if track.ISRC == "" {
			n.logger.Warn("dropping Apple Music entry without ISRC", "position", idx+1, "name", track.Name)
			continue
		}

		entries = append(entries, models.NormalizedEntry{
			Position: idx + 1,
			ISRC:     track.ISRC,
			Name:     track.Name,
			Artist:   track.Artist,
			URL:      track.Link,
		})
	}

	return entries, nil
}

type soundCloudPayload struct {
	Tracks struct {
		Items []struct {
			Title string `json:"title"`
			User  struct {
				Name string `json:"name"`
			} `json:"user"`
			Publisher struct {
				ISRC string `json:"isrc"`
			} `json:"publisher"`
			Permalink  string `json:"permalink"`
			ArtworkURL string `json:"artworkUrl"`
		} `json:"items"`
	} `json:"tracks"`
}

func (n *Normalizer) normalizeSoundCloud(payload []byte) ([]models.NormalizedEntry, error) {
	var raw soundCloudPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse SoundCloud payload: %w", err)
	}

	var entries []models.NormalizedEntry
	for i, item := range raw.Tracks.Items {
		if item.Publisher.ISRC == "" {
			n.logger.Warn("dropping SoundCloud entry without ISRC", "position", i+1, "title", item.Title)
			continue
		}

		name := item.Title
		artist := item.User.Name

		// SoundCloud titles frequently embed the artist as "Artist - Title".
		if before, after, found := strings.Cut(name, " - "); found {
			artist = before
			name = after
		}

		entries = append(entries, models.NormalizedEntry{
			Position:      i + 1,
			ISRC:          item.Publisher.ISRC,
			Name:          name,
			Artist:        artist,
			URL:           item.Permalink,
			AlbumCoverURL: item.ArtworkURL,
		})
	}

	return entries, nil
}
