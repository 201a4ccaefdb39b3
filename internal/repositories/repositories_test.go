package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func sampleTrack(isrc string) *models.Track {
	track := models.NewTrack(isrc)
	track.Name = "Song " + isrc
	track.ArtistName = "Artist"
	track.ServiceURLs[models.ServiceSpotify] = "https://open.spotify.com/track/" + isrc
	return track
}

func TestTrackRepository(t *testing.T) {
	repo := NewTrackRepository(testDB(t))

	t.Run("upsert and get", func(t *testing.T) {
		track := sampleTrack("USRC17607839")
		track.AlbumName = "The Album"
		if err := repo.Upsert(track); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}

		got, err := repo.Get("USRC17607839")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if got.Name != track.Name || got.AlbumName != "The Album" {
			t.Errorf("got %+v", got)
		}
		if got.URL(models.ServiceSpotify) != track.URL(models.ServiceSpotify) {
			t.Errorf("spotify URL = %q", got.URL(models.ServiceSpotify))
		}
		if got.URL(models.ServiceYouTube) != "" {
			t.Errorf("unexpected youtube URL %q", got.URL(models.ServiceYouTube))
		}
	})

	t.Run("upsert replaces fields", func(t *testing.T) {
		track := sampleTrack("USRC17607839")
		track.Name = "Renamed"
		if err := repo.Upsert(track); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}

		got, err := repo.Get("USRC17607839")
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Renamed" {
			t.Errorf("Name = %q after second upsert", got.Name)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}
	})

	t.Run("upsert rejects malformed isrc", func(t *testing.T) {
		err := repo.Upsert(models.NewTrack("nope"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("get missing track", func(t *testing.T) {
		_, err := repo.Get("ZZXYZ0000000")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("replace all", func(t *testing.T) {
		tracks := []*models.Track{sampleTrack("GBUM72404321"), sampleTrack("DEA452300111")}
		if err := repo.ReplaceAll(tracks); err != nil {
			t.Fatalf("ReplaceAll returned error: %v", err)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("Count() = %d after rebuild, want 2", count)
		}

		// The previous run's track is gone.
		if _, err := repo.Get("USRC17607839"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected old track gone, got %v", err)
		}

		list, err := repo.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 {
			t.Errorf("List() returned %d tracks", len(list))
		}
	})
}

func TestPlacementRepository(t *testing.T) {
	db := testDB(t)
	repo := NewPlacementRepository(db)

	placements := []models.PlacementRecord{
		{Service: models.ServiceSpotify, Genre: "pop", ISRC: "USRC17607839", Position: 1},
		{Service: models.ServiceAppleMusic, Genre: "pop", ISRC: "USRC17607839", Position: 4},
		{Service: models.ServiceSpotify, Genre: "rap", ISRC: "GBUM72404321", Position: 2},
	}
	if err := repo.ReplaceAll(placements); err != nil {
		t.Fatalf("ReplaceAll returned error: %v", err)
	}

	t.Run("list by genre preserves order", func(t *testing.T) {
		pop, err := repo.ListByGenre("pop")
		if err != nil {
			t.Fatal(err)
		}
		if len(pop) != 2 {
			t.Fatalf("expected 2 pop placements, got %d", len(pop))
		}
		if pop[0] != placements[0] || pop[1] != placements[1] {
			t.Errorf("ListByGenre = %+v", pop)
		}
	})

	t.Run("replace clears previous run", func(t *testing.T) {
		next := []models.PlacementRecord{
			{Service: models.ServiceSoundCloud, Genre: "dance", ISRC: "DEA452300111", Position: 1},
		}
		if err := repo.ReplaceAll(next); err != nil {
			t.Fatal(err)
		}

		all, err := repo.ListAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 || all[0] != next[0] {
			t.Errorf("ListAll = %+v", all)
		}
	})
}

func TestAggregateRepository(t *testing.T) {
	db := testDB(t)
	repo := NewAggregateRepository(db)

	entries := []models.AggregateEntry{
		{
			Genre: "pop", ISRC: "USRC17607839", Position: 1, RawRank: 5,
			SourceService: models.ServiceAppleMusic,
			Sources: map[models.Service]int{
				models.ServiceAppleMusic: 5,
				models.ServiceSpotify:    1,
			},
		},
		{
			Genre: "pop", ISRC: "GBUM72404321", Position: 2, RawRank: 9,
			SourceService: models.ServiceSoundCloud,
			Sources: map[models.Service]int{
				models.ServiceSoundCloud: 9,
				models.ServiceSpotify:    3,
			},
		},
	}
	if err := repo.ReplaceForGenre("pop", entries); err != nil {
		t.Fatalf("ReplaceForGenre returned error: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.ListByGenre("pop")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if got[0].ISRC != "USRC17607839" || got[0].RawRank != 5 {
			t.Errorf("first entry = %+v", got[0])
		}
		if got[0].Sources[models.ServiceAppleMusic] != 5 || got[0].Sources[models.ServiceSpotify] != 1 {
			t.Errorf("sources = %v", got[0].Sources)
		}
	})

	t.Run("replace is scoped to the genre", func(t *testing.T) {
		rap := []models.AggregateEntry{
			{
				Genre: "rap", ISRC: "DEA452300111", Position: 1, RawRank: 2,
				SourceService: models.ServiceAppleMusic,
				Sources:       map[models.Service]int{models.ServiceAppleMusic: 2, models.ServiceSpotify: 7},
			},
		}
		if err := repo.ReplaceForGenre("rap", rap); err != nil {
			t.Fatal(err)
		}

		pop, err := repo.ListByGenre("pop")
		if err != nil {
			t.Fatal(err)
		}
		if len(pop) != 2 {
			t.Errorf("pop entries disturbed by rap rewrite: %d", len(pop))
		}

		if err := repo.ReplaceForGenre("pop", nil); err != nil {
			t.Fatal(err)
		}
		pop, err = repo.ListByGenre("pop")
		if err != nil {
			t.Fatal(err)
		}
		if len(pop) != 0 {
			t.Errorf("expected empty pop playlist after replacement, got %d", len(pop))
		}
	})
}

func TestSampleRepository(t *testing.T) {
	db := testDB(t)
	repo := NewSampleRepository(db)

	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
	}

	seed := []*models.PopularitySample{
		{ISRC: "USRC17607839", Source: models.SourceYouTube, RecordedDate: day(20), Count: 15000000, Delta: 0},
		{ISRC: "USRC17607839", Source: models.SourceYouTube, RecordedDate: day(27), Count: 15420000, Delta: 420000},
		{ISRC: "USRC17607839", Source: models.SourceSpotify, RecordedDate: day(27), Count: 81, Delta: 2},
	}
	for _, sample := range seed {
		if err := repo.Upsert(sample); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	t.Run("latest before picks most recent prior day", func(t *testing.T) {
		prior, err := repo.LatestBefore("USRC17607839", models.SourceYouTube, day(31))
		if err != nil {
			t.Fatalf("LatestBefore returned error: %v", err)
		}
		if prior.Count != 15420000 {
			t.Errorf("prior count = %d, want 15420000", prior.Count)
		}
		if !prior.RecordedDate.Equal(day(27)) {
			t.Errorf("prior date = %v", prior.RecordedDate)
		}
	})

	t.Run("latest before excludes the same day", func(t *testing.T) {
		prior, err := repo.LatestBefore("USRC17607839", models.SourceYouTube, day(27))
		if err != nil {
			t.Fatal(err)
		}
		if !prior.RecordedDate.Equal(day(20)) {
			t.Errorf("prior date = %v, want the earlier sample", prior.RecordedDate)
		}
	})

	t.Run("no prior sample", func(t *testing.T) {
		_, err := repo.LatestBefore("USRC17607839", models.SourceYouTube, day(20))
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sources are independent series", func(t *testing.T) {
		prior, err := repo.LatestBefore("USRC17607839", models.SourceSpotify, day(31))
		if err != nil {
			t.Fatal(err)
		}
		if prior.Count != 81 {
			t.Errorf("spotify prior count = %d", prior.Count)
		}
	})

	t.Run("same day upsert replaces", func(t *testing.T) {
		if err := repo.Upsert(&models.PopularitySample{
			ISRC: "USRC17607839", Source: models.SourceYouTube,
			RecordedDate: day(27), Count: 15430000, Delta: 430000,
		}); err != nil {
			t.Fatal(err)
		}

		samples, err := repo.ListForTrack("USRC17607839", models.SourceYouTube)
		if err != nil {
			t.Fatal(err)
		}
		if len(samples) != 2 {
			t.Fatalf("expected 2 samples after same-day rewrite, got %d", len(samples))
		}
		if samples[1].Count != 15430000 {
			t.Errorf("rewritten count = %d", samples[1].Count)
		}
	})
}
