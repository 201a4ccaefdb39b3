package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// AggregateRepository persists combined playlist entries, replaced per genre
// each run so stale entries from dropped tracks never linger.
type AggregateRepository struct {
	db *sql.DB
}

// NewAggregateRepository creates a new AggregateRepository with the given database connection
func NewAggregateRepository(db *sql.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// ReplaceForGenre deletes a genre's combined playlist and writes the given
// replacement set.
func (r *AggregateRepository) ReplaceForGenre(genre string, entries []models.AggregateEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM aggregate_entries WHERE genre = ?", genre); err != nil {
		return fmt.Errorf("failed to clear aggregate entries: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO aggregate_entries (id, genre, isrc, position, raw_rank, source_service, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, entry := range entries {
		sources, err := json.Marshal(entry.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources for %s: %w", entry.ISRC, err)
		}

		_, err = tx.Exec(query,
			shared.GenerateID(),
			entry.Genre,
			entry.ISRC,
			entry.Position,
			entry.RawRank,
			string(entry.SourceService),
			string(sources),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert aggregate entry %s/%s: %w", entry.Genre, entry.ISRC, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregate rewrite: %w", err)
	}

	return nil
}

// ListByGenre retrieves a genre's combined playlist ordered by position.
func (r *AggregateRepository) ListByGenre(genre string) ([]models.AggregateEntry, error) {
	query := `
		SELECT genre, isrc, position, raw_rank, source_service, sources
		FROM aggregate_entries
		WHERE genre = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, genre)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AggregateEntry
	for rows.Next() {
		var (
			entryGenre    string
			isrc          string
			position      int
			rawRank       int
			sourceService string
			sourcesJSON   string
		)
		if err := rows.Scan(&entryGenre, &isrc, &position, &rawRank, &sourceService, &sourcesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate entry: %w", err)
		}

		sources := make(map[models.Service]int)
		if err := json.Unmarshal([]byte(sourcesJSON), &sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources for %s: %w", isrc, err)
		}

		entries = append(entries, models.AggregateEntry{
			Genre:         entryGenre,
			ISRC:          isrc,
			Position:      position,
			RawRank:       rawRank,
			SourceService: models.Service(sourceService),
			Sources:       sources,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}
