package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// SampleRepository persists the popularity time series. The series is
// append-only: one sample exists per (isrc, source, recorded date), and a
// later write for the same key replaces the earlier one.
type SampleRepository struct {
	db *sql.DB
}

// NewSampleRepository creates a new SampleRepository with the given database connection
func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// Upsert writes a sample, replacing any sample with the same key.
func (r *SampleRepository) Upsert(sample *models.PopularitySample) error {
	query := `
		INSERT INTO popularity_samples (id, isrc, source, recorded_date, count, delta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isrc, source, recorded_date) DO UPDATE SET
			count = excluded.count,
			delta = excluded.delta
	`

	_, err := r.db.Exec(query,
		shared.GenerateID(),
		sample.ISRC,
		string(sample.Source),
		dateKey(sample.RecordedDate),
		sample.Count,
		sample.Delta,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sample: %w", err)
	}

	return nil
}

// LatestBefore returns the most recent sample for (isrc, source) recorded
// strictly before date, or [shared.ErrNotFound].
func (r *SampleRepository) LatestBefore(isrc string, source models.Source, date time.Time) (*models.PopularitySample, error) {
	query := `
		SELECT isrc, source, recorded_date, count, delta
		FROM popularity_samples
		WHERE isrc = ? AND source = ? AND recorded_date < ?
		ORDER BY recorded_date DESC
		LIMIT 1
	`

	sample, err := scanSample(r.db.QueryRow(query, isrc, string(source), dateKey(date)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no prior sample for %s/%s", shared.ErrNotFound, isrc, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sample: %w", err)
	}

	return sample, nil
}

// ListForTrack returns a track's samples on one source, oldest first.
func (r *SampleRepository) ListForTrack(isrc string, source models.Source) ([]*models.PopularitySample, error) {
	query := `
		SELECT isrc, source, recorded_date, count, delta
		FROM popularity_samples
		WHERE isrc = ? AND source = ?
		ORDER BY recorded_date ASC
	`

	rows, err := r.db.Query(query, isrc, string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.PopularitySample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return samples, nil
}

func scanSample(row scanner) (*models.PopularitySample, error) {
	var (
		isrc     string
		source   string
		recorded string
		count    int64
		delta    int64
	)

	if err := row.Scan(&isrc, &source, &recorded, &count, &delta); err != nil {
		return nil, err
	}

	date, err := time.ParseInLocation("2006-01-02", recorded, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("malformed recorded_date %q: %w", recorded, err)
	}

	return &models.PopularitySample{
		ISRC:         isrc,
		Source:       models.Source(source),
		RecordedDate: date,
		Count:        count,
		Delta:        delta,
	}, nil
}
