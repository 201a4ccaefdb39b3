package catalog

import (
	"testing"

	"github.com/crosschart/crosschart/internal/models"
)

func TestGetOrCreate(t *testing.T) {
	cat := New(nil)

	first := cat.GetOrCreate("USRC17607839")
	second := cat.GetOrCreate("USRC17607839")
	if first != second {
		t.Error("expected the same track pointer for the same ISRC")
	}
	if cat.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cat.Len())
	}

	cat.GetOrCreate("GBUM72404321")
	if cat.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cat.Len())
	}
}

func TestMergeFillsEmptyFieldsOnly(t *testing.T) {
	cat := New(nil)
	track := cat.GetOrCreate("USRC17607839")

	cat.Merge(track, models.ServiceSpotify, Fields{
		Name:       "Original Name",
		ArtistName: "Original Artist",
		URL:        "https://open.spotify.com/track/abc",
	})

	// A later service must not overwrite populated fields.
	cat.Merge(track, models.ServiceAppleMusic, Fields{
		Name:          "Different Name",
		ArtistName:    "Different Artist",
		AlbumName:     "The Album",
		AlbumCoverURL: "https://example.com/cover.jpg",
		URL:           "https://music.apple.com/song/1",
	})

	if track.Name != "Original Name" {
		t.Errorf("Name = %q, first writer should win", track.Name)
	}
	if track.ArtistName != "Original Artist" {
		t.Errorf("ArtistName = %q, first writer should win", track.ArtistName)
	}
	if track.AlbumName != "The Album" {
		t.Errorf("AlbumName = %q, empty field should be filled", track.AlbumName)
	}
	if track.AlbumCoverURL != "https://example.com/cover.jpg" {
		t.Errorf("AlbumCoverURL = %q, empty field should be filled", track.AlbumCoverURL)
	}

	if track.URL(models.ServiceSpotify) != "https://open.spotify.com/track/abc" {
		t.Errorf("spotify URL = %q", track.URL(models.ServiceSpotify))
	}
	if track.URL(models.ServiceAppleMusic) != "https://music.apple.com/song/1" {
		t.Errorf("apple music URL = %q", track.URL(models.ServiceAppleMusic))
	}
}

func TestMergeKeepsFirstURLPerService(t *testing.T) {
	cat := New(nil)
	track := cat.GetOrCreate("USRC17607839")

	cat.Merge(track, models.ServiceSpotify, Fields{URL: "https://open.spotify.com/track/first"})
	cat.Merge(track, models.ServiceSpotify, Fields{URL: "https://open.spotify.com/track/second"})

	if got := track.URL(models.ServiceSpotify); got != "https://open.spotify.com/track/first" {
		t.Errorf("URL = %q, want first write kept", got)
	}
}

func TestTracksOrder(t *testing.T) {
	cat := New(nil)
	isrcs := []string{"USRC17607839", "GBUM72404321", "DEA452300111"}
	for _, isrc := range isrcs {
		cat.GetOrCreate(isrc)
	}
	cat.GetOrCreate(isrcs[0]) // revisit must not reorder

	tracks := cat.Tracks()
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	for i, track := range tracks {
		if track.ISRC != isrcs[i] {
			t.Errorf("track %d = %s, want %s (first-sighting order)", i, track.ISRC, isrcs[i])
		}
	}
}
