package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/crosschart/crosschart/internal/formatter"
	"github.com/crosschart/crosschart/internal/repositories"
	"github.com/crosschart/crosschart/internal/shared"
	"github.com/urfave/cli/v3"
)

// Export writes one genre's combined playlist to CSV, Markdown or plain text.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	genre := cmd.String("genre")
	if genre == "" {
		return fmt.Errorf("%w: genre is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repositories.NewAggregateRepository(db).ListByGenre(genre)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no combined playlist for genre %q", shared.ErrNotFound, genre)
	}

	trackRepo := repositories.NewTrackRepository(db)
	rows := make([]formatter.Row, 0, len(entries))
	for _, entry := range entries {
		track, err := trackRepo.Get(entry.ISRC)
		if errors.Is(err, shared.ErrNotFound) {
			track = nil
		} else if err != nil {
			return err
		}
		rows = append(rows, formatter.Row{Entry: entry, Track: track})
	}

	var output []byte
	switch format := cmd.String("format"); format {
	case "csv":
		output, err = formatter.ExportToCSV(genre, rows)
	case "markdown", "md":
		output, err = formatter.ExportToMarkdown(genre, rows)
	case "text", "txt":
		output, err = formatter.ExportToText(genre, rows)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	if path := cmd.String("out"); path != "" {
		if err := os.WriteFile(path, output, 0644); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}
		return r.writePlainln("Exported %d tracks to %s", len(rows), path)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a genre's combined playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
			},
			&cli.StringFlag{
				Name:     "genre",
				Aliases:  []string{"g"},
				Usage:    "Genre to export",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "csv",
				Usage:   "Output format: csv, markdown, text",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write to file instead of stdout",
			},
		},
		Action: r.Export,
	}
}
