package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// PlacementRepository persists placement records. Records are immutable once
// written; the full set is cleared and rewritten each run.
type PlacementRepository struct {
	db *sql.DB
}

// NewPlacementRepository creates a new PlacementRepository with the given database connection
func NewPlacementRepository(db *sql.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

// ReplaceAll deletes every stored placement and writes the given run's set.
func (r *PlacementRepository) ReplaceAll(placements []models.PlacementRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM placements"); err != nil {
		return fmt.Errorf("failed to clear placements: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO placements (id, service, genre, isrc, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, placement := range placements {
		_, err := tx.Exec(query,
			shared.GenerateID(),
			string(placement.Service),
			placement.Genre,
			placement.ISRC,
			placement.Position,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert placement %s/%s/%s: %w",
				placement.Service, placement.Genre, placement.ISRC, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit placement rewrite: %w", err)
	}

	return nil
}

// ListByGenre retrieves one genre's placements in insertion order.
func (r *PlacementRepository) ListByGenre(genre string) ([]models.PlacementRecord, error) {
	query := `
		SELECT service, genre, isrc, position
		FROM placements
		WHERE genre = ?
		ORDER BY rowid ASC
	`

	rows, err := r.db.Query(query, genre)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	return scanPlacements(rows)
}

// ListAll retrieves every placement in insertion order.
func (r *PlacementRepository) ListAll() ([]models.PlacementRecord, error) {
	query := `
		SELECT service, genre, isrc, position
		FROM placements
		ORDER BY rowid ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	return scanPlacements(rows)
}

func scanPlacements(rows *sql.Rows) ([]models.PlacementRecord, error) {
	var placements []models.PlacementRecord
	for rows.Next() {
		var (
			service  string
			genre    string
			isrc     string
			position int
		)
		if err := rows.Scan(&service, &genre, &isrc, &position); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		placements = append(placements, models.PlacementRecord{
			Service:  models.Service(service),
			Genre:    genre,
			ISRC:     isrc,
			Position: position,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return placements, nil
}
