package resolver

import (
	"errors"
	"testing"

	"github.com/crosschart/crosschart/internal/catalog"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

func entry(position int, isrc, name, artist string) models.NormalizedEntry {
	return models.NormalizedEntry{Position: position, ISRC: isrc, Name: name, Artist: artist}
}

func TestResolveBatch(t *testing.T) {
	cat := catalog.New(nil)
	res := New(nil, cat)

	entries := []models.NormalizedEntry{
		entry(1, "USRC17607839", "First", "Artist A"),
		entry(2, "GBUM72404321", "Second", "Artist B"),
	}
	if err := res.ResolveBatch(models.ServiceSpotify, "pop", entries); err != nil {
		t.Fatalf("ResolveBatch returned error: %v", err)
	}

	if cat.Len() != 2 {
		t.Errorf("catalog has %d tracks, want 2", cat.Len())
	}

	placements := res.Placements()
	if len(placements) != 2 {
		t.Fatalf("expected 2 placements, got %d", len(placements))
	}
	want := models.PlacementRecord{Service: models.ServiceSpotify, Genre: "pop", ISRC: "USRC17607839", Position: 1}
	if placements[0] != want {
		t.Errorf("placement = %+v, want %+v", placements[0], want)
	}
}

func TestResolveBatchRejectsWholeBatch(t *testing.T) {
	cat := catalog.New(nil)
	res := New(nil, cat)

	entries := []models.NormalizedEntry{
		entry(1, "USRC17607839", "Valid", "Artist A"),
		entry(2, "NOTANISRC", "Broken", "Artist B"),
	}
	err := res.ResolveBatch(models.ServiceSpotify, "pop", entries)
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// A failed batch must leave no partial state behind.
	if cat.Len() != 0 {
		t.Errorf("catalog has %d tracks after failed batch, want 0", cat.Len())
	}
	if len(res.Placements()) != 0 {
		t.Errorf("placements recorded after failed batch: %d", len(res.Placements()))
	}
}

func TestResolveBatchMergesAcrossServices(t *testing.T) {
	cat := catalog.New(nil)
	res := New(nil, cat)

	spotify := models.NormalizedEntry{
		Position: 1, ISRC: "USRC17607839", Name: "The Song", Artist: "The Artist",
		URL: "https://open.spotify.com/track/abc",
	}
	apple := models.NormalizedEntry{
		Position: 4, ISRC: "USRC17607839", Name: "The Song (Apple)", Artist: "The Artist",
		URL: "https://music.apple.com/song/1",
	}

	if err := res.ResolveBatch(models.ServiceSpotify, "pop", []models.NormalizedEntry{spotify}); err != nil {
		t.Fatalf("spotify batch: %v", err)
	}
	if err := res.ResolveBatch(models.ServiceAppleMusic, "pop", []models.NormalizedEntry{apple}); err != nil {
		t.Fatalf("apple batch: %v", err)
	}

	if cat.Len() != 1 {
		t.Fatalf("catalog has %d tracks, want 1 merged track", cat.Len())
	}

	track, _ := cat.Get("USRC17607839")
	if track.Name != "The Song" {
		t.Errorf("Name = %q, first service should win", track.Name)
	}
	if track.URL(models.ServiceSpotify) == "" || track.URL(models.ServiceAppleMusic) == "" {
		t.Error("expected URLs from both services")
	}

	if len(res.Placements()) != 2 {
		t.Errorf("expected 2 placements, got %d", len(res.Placements()))
	}
}

func TestPlacementsForGenre(t *testing.T) {
	cat := catalog.New(nil)
	res := New(nil, cat)

	if err := res.ResolveBatch(models.ServiceSpotify, "pop",
		[]models.NormalizedEntry{entry(1, "USRC17607839", "A", "B")}); err != nil {
		t.Fatal(err)
	}
	if err := res.ResolveBatch(models.ServiceSpotify, "rap",
		[]models.NormalizedEntry{entry(1, "GBUM72404321", "C", "D")}); err != nil {
		t.Fatal(err)
	}

	pop := res.PlacementsForGenre("pop")
	if len(pop) != 1 || pop[0].ISRC != "USRC17607839" {
		t.Errorf("PlacementsForGenre(pop) = %+v", pop)
	}
	if got := res.PlacementsForGenre("country"); len(got) != 0 {
		t.Errorf("PlacementsForGenre(country) = %+v, want empty", got)
	}
}
