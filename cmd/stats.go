package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/mdash/internal/formatter"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/repositories"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/urfave/cli/v3"
)

// Stats computes streaming statistics and renders them in the requested format.
//
// When the record store cannot be opened the report falls back to local tallies.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	output := cmd.String("output")

	var store repositories.Store
	if !cmd.Bool("no-store") {
		if store, err = r.recordStore(ctx); err != nil {
			r.logger.Warn("continuing without record store", "error", err)
		}
	}

	progress, stop := r.trackProgress()
	stats, err := r.statsEngine(store).StreamingStats(ctx, progress)
	stop()
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	data, err := formatter.RenderStats(stats, format, r.renderPalette(output))
	if err != nil {
		return fmt.Errorf("failed to render stats: %w", err)
	}
	return r.writeOutput(output, data)
}

// PlaysRecord increments a track's play counter and stores a listening session.
func (r *Runner) PlaysRecord(ctx context.Context, cmd *cli.Command) error {
	track := models.Track{
		ID:         cmd.String("id"),
		Title:      cmd.String("title"),
		Artist:     cmd.String("artist"),
		AlbumTitle: cmd.String("album"),
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		return err
	}

	count, err := r.statsEngine(store).RecordPlay(ctx, track)
	if err != nil {
		return err
	}

	r.logger.Info("play recorded", "track", track.ID, "count", count)
	return r.writePlain("✓ %s now has %d plays\n", describeTrack(track), count)
}

// playCount is the JSON shape of a stored play counter.
type playCount struct {
	TrackID   string `json:"trackId"`
	PlayCount int    `json:"playCount"`
}

// PlaysShow prints the stored play count for a track.
func (r *Runner) PlaysShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		return err
	}

	count, err := r.statsEngine(store).PlayCount(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playCount{TrackID: id, PlayCount: count}, true)
	}
	return r.writePlain("%s has %d plays\n", id, count)
}

// resetter is implemented by record stores that can delete a single play record.
type resetter interface {
	Reset(ctx context.Context, trackID string) error
}

// PlaysReset deletes the play record for a track.
func (r *Runner) PlaysReset(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		return err
	}

	rs, ok := store.(resetter)
	if !ok {
		return fmt.Errorf("%w: store driver %q does not support resetting plays", shared.ErrNotImplemented, r.config.Store.Driver)
	}
	if err := rs.Reset(ctx, id); err != nil {
		return fmt.Errorf("failed to reset plays for %s: %w", id, err)
	}

	r.logger.Info("play record reset", "track", id)
	return r.writePlain("✓ Reset plays for %s\n", id)
}

// pruner is implemented by record stores that can delete old sessions.
type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// PlaysPrune deletes listening sessions older than --older-than.
func (r *Runner) PlaysPrune(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		return err
	}

	p, ok := store.(pruner)
	if !ok {
		return fmt.Errorf("%w: store driver %q does not support pruning", shared.ErrNotImplemented, r.config.Store.Driver)
	}

	cutoff := time.Now().Add(-age)
	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}

	r.logger.Info("sessions pruned", "cutoff", cutoff, "deleted", n)
	return r.writePlain("✓ Deleted %d sessions older than %s\n", n, cutoff.Format(time.DateTime))
}

func describeTrack(t models.Track) string {
	switch {
	case t.Title != "" && t.Artist != "":
		return fmt.Sprintf("%s - %s", t.Artist, t.Title)
	case t.Title != "":
		return t.Title
	default:
		return t.ID
	}
}
