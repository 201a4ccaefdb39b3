package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// TrackRepository persists canonical tracks keyed by ISRC.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Upsert writes a canonical track, replacing the stored fields for its ISRC.
func (r *TrackRepository) Upsert(track *models.Track) error {
	if !models.ValidISRC(track.ISRC) {
		return fmt.Errorf("%w: malformed ISRC %q", shared.ErrInvalidArgument, track.ISRC)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO tracks (isrc, name, artist_name, album_name, album_cover_url,
			spotify_url, apple_music_url, soundcloud_url, youtube_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isrc) DO UPDATE SET
			name = excluded.name,
			artist_name = excluded.artist_name,
			album_name = excluded.album_name,
			album_cover_url = excluded.album_cover_url,
			spotify_url = excluded.spotify_url,
			apple_music_url = excluded.apple_music_url,
			soundcloud_url = excluded.soundcloud_url,
			youtube_url = excluded.youtube_url,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		track.ISRC,
		track.Name,
		track.ArtistName,
		track.AlbumName,
		track.AlbumCoverURL,
		track.URL(models.ServiceSpotify),
		track.URL(models.ServiceAppleMusic),
		track.URL(models.ServiceSoundCloud),
		track.URL(models.ServiceYouTube),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}

	return nil
}

// Get retrieves a canonical track by ISRC.
func (r *TrackRepository) Get(isrc string) (*models.Track, error) {
	query := `
		SELECT isrc, name, artist_name, album_name, album_cover_url,
			spotify_url, apple_music_url, soundcloud_url, youtube_url
		FROM tracks
		WHERE isrc = ?
	`

	track, err := scanTrack(r.db.QueryRow(query, isrc))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, isrc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return track, nil
}

// List retrieves all canonical tracks ordered by ISRC.
func (r *TrackRepository) List() ([]*models.Track, error) {
	query := `
		SELECT isrc, name, artist_name, album_name, album_cover_url,
			spotify_url, apple_music_url, soundcloud_url, youtube_url
		FROM tracks
		ORDER BY isrc ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// ReplaceAll deletes every stored track and writes the given set.
// A fresh ETL run rebuilds the table from scratch.
func (r *TrackRepository) ReplaceAll(tracks []*models.Track) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tracks"); err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO tracks (isrc, name, artist_name, album_name, album_cover_url,
			spotify_url, apple_music_url, soundcloud_url, youtube_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, track := range tracks {
		_, err := tx.Exec(query,
			track.ISRC,
			track.Name,
			track.ArtistName,
			track.AlbumName,
			track.AlbumCoverURL,
			track.URL(models.ServiceSpotify),
			track.URL(models.ServiceAppleMusic),
			track.URL(models.ServiceSoundCloud),
			track.URL(models.ServiceYouTube),
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert track %s: %w", track.ISRC, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit track rebuild: %w", err)
	}

	return nil
}

// Count returns the number of stored tracks.
func (r *TrackRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*models.Track, error) {
	var (
		isrc          string
		name          string
		artistName    string
		albumName     string
		albumCoverURL string
		spotifyURL    string
		appleMusicURL string
		soundCloudURL string
		youtubeURL    string
	)

	err := row.Scan(&isrc, &name, &artistName, &albumName, &albumCoverURL,
		&spotifyURL, &appleMusicURL, &soundCloudURL, &youtubeURL)
	if err != nil {
		return nil, err
	}

	track := models.NewTrack(isrc)
	track.Name = name
	track.ArtistName = artistName
	track.AlbumName = albumName
	track.AlbumCoverURL = albumCoverURL
	if spotifyURL != "" {
		track.ServiceURLs[models.ServiceSpotify] = spotifyURL
	}
	if appleMusicURL != "" {
		track.ServiceURLs[models.ServiceAppleMusic] = appleMusicURL
	}
	if soundCloudURL != "" {
		track.ServiceURLs[models.ServiceSoundCloud] = soundCloudURL
	}
	if youtubeURL != "" {
		track.ServiceURLs[models.ServiceYouTube] = youtubeURL
	}

	return track, nil
}
