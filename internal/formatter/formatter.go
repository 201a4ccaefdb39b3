// package formatter exports a genre's combined playlist to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/crosschart/crosschart/internal/models"
)

// Row pairs a combined playlist entry with its canonical track metadata.
type Row struct {
	Entry models.AggregateEntry
	Track *models.Track
}

// ExportToCSV converts a combined playlist to CSV with columns:
// Position, ISRC, Title, Artist, TieBreakService, Sources
func ExportToCSV(genre string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ISRC", "Title", "Artist", "TieBreakService", "Sources"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.Entry.Position),
			row.Entry.ISRC,
			trackName(row.Track),
			trackArtist(row.Track),
			string(row.Entry.SourceService),
			sourcesString(row.Entry.Sources),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a combined playlist to Markdown format
func ExportToMarkdown(genre string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Combined %s playlist\n\n", genre))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(rows)))

	for _, row := range rows {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%s, via %s)\n",
			row.Entry.Position,
			trackArtist(row.Track),
			trackName(row.Track),
			sourcesString(row.Entry.Sources),
			row.Entry.SourceService,
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a combined playlist to plain text format
func ExportToText(genre string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Genre: %s\n", genre))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(rows)))

	for _, row := range rows {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n",
			row.Entry.Position, trackArtist(row.Track), trackName(row.Track)))
	}

	return buf.Bytes(), nil
}

func trackName(track *models.Track) string {
	if track == nil {
		return ""
	}
	return track.Name
}

func trackArtist(track *models.Track) string {
	if track == nil {
		return ""
	}
	return track.ArtistName
}

// sourcesString renders the per-service positions in stable service order.
func sourcesString(sources map[models.Service]int) string {
	names := make([]string, 0, len(sources))
	for service := range sources {
		names = append(names, string(service))
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, sources[models.Service(name)]))
	}
	return strings.Join(parts, " ")
}
