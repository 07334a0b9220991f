package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/mdash/internal/formatter"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/desertthunder/mdash/internal/tasks"
	"github.com/urfave/cli/v3"
)

const coverSize = "600"

// PlaylistGenerate builds a playlist from seed tracks and an optional genre.
func (r *Runner) PlaylistGenerate(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	seeds, err := loadSeeds(cmd.String("seed-file"), cmd.StringSlice("seed"))
	if err != nil {
		return err
	}
	genre := cmd.String("genre")
	if len(seeds) == 0 && genre == "" {
		return fmt.Errorf("%w: provide --seed, --seed-file or --genre", shared.ErrMissingArgument)
	}

	var mood models.PlaylistMood
	if m := cmd.String("mood"); m != "" {
		parsed, ok := models.ParseMood(m)
		if !ok {
			return fmt.Errorf("%w: unknown mood %q", shared.ErrInvalidArgument, m)
		}
		mood = parsed
	}

	var opts []tasks.GeneratorOption
	if cmd.IsSet("shuffle-seed") {
		opts = append(opts, tasks.WithShuffleSeed(cmd.Uint64("shuffle-seed")))
	}
	generator := r.playlistGenerator(opts...)

	r.logger.Info("generating playlist", "seeds", len(seeds), "genre", genre)
	progress, stop := r.trackProgress()
	tracks, err := generator.Generate(ctx, seeds, genre, progress)
	stop()
	if err != nil {
		return fmt.Errorf("failed to generate playlist: %w", err)
	}

	playlist := generator.BuildPlaylist(cmd.String("name"), tracks, genre, mood)
	return r.writePlaylist(&playlist, format, cmd.String("output"))
}

// PlaylistWeekly builds the weekly mix from the user's recommendations.
func (r *Runner) PlaylistWeekly(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	playlist, err := r.playlistGenerator().WeeklyPlaylist(ctx)
	if err != nil {
		return fmt.Errorf("failed to build weekly playlist: %w", err)
	}

	r.logger.Info("weekly playlist ready", "tracks", len(playlist.Tracks), "next_update", playlist.Schedule.NextUpdate)
	return r.writePlaylist(playlist, format, cmd.String("output"))
}

// writePlaylist renders a playlist to stdout, or exports it when output is set.
//
// CSV exports write {output}_tracks.csv and {output}_metadata.json. Markdown exports write a directory with the
// cover image of the first track.
func (r *Runner) writePlaylist(playlist *models.Playlist, format formatter.Format, output string) error {
	if output != "" {
		switch format {
		case formatter.FormatCSV:
			result, err := formatter.WriteCSVExport(playlist, output)
			if err != nil {
				return err
			}
			r.logger.Info("playlist exported", "tracks", result.TracksFile, "metadata", result.MetadataFile)
			return r.writePlain("✓ Exported %s and %s\n", result.TracksFile, result.MetadataFile)
		case formatter.FormatMarkdown:
			result, err := formatter.WriteMarkdownExport(playlist, output, formatter.CoverURL(playlist, coverSize))
			if err != nil {
				return err
			}
			r.logger.Info("playlist exported", "dir", result.Directory, "files", len(result.Files))
			return r.writePlain("✓ Exported %d files to %s\n", len(result.Files), result.Directory)
		}
	}

	data, err := formatter.RenderPlaylist(playlist, format, r.renderPalette(output))
	if err != nil {
		return fmt.Errorf("failed to render playlist: %w", err)
	}
	return r.writeOutput(output, data)
}

// loadSeeds reads seed tracks from a JSON file and id:artist:title flag values.
func loadSeeds(path string, flags []string) ([]models.Track, error) {
	var seeds []models.Track

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		if err := json.Unmarshal(data, &seeds); err != nil {
			return nil, fmt.Errorf("%w: seed file must hold a JSON array of tracks: %v", shared.ErrInvalidInput, err)
		}
	}

	for _, f := range flags {
		seed, err := parseSeed(f)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}

	return seeds, nil
}

// parseSeed parses "id:artist:title". The title may itself contain colons.
func parseSeed(s string) (models.Track, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		return models.Track{}, fmt.Errorf("%w: seed %q must be id:artist:title", shared.ErrInvalidArgument, s)
	}
	return models.Track{
		ID:     strings.TrimSpace(parts[0]),
		Artist: strings.TrimSpace(parts[1]),
		Title:  strings.TrimSpace(parts[2]),
	}, nil
}
