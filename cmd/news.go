package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mdash/internal/formatter"
	"github.com/desertthunder/mdash/internal/services"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/urfave/cli/v3"
)

// News fetches articles from every configured source and renders them.
//
// Sources that fail are listed after the articles; the command itself only fails on bad flags.
func (r *Runner) News(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		format = formatter.FormatJSON
	}

	genre := cmd.String("genre")
	search := cmd.String("search")
	r.logger.Info("fetching news", "genre", genre, "search", search, "sources", len(r.news))

	result := r.newsAggregator().GetMusicNews(ctx, genre, search)
	for _, e := range result.Errors {
		r.logger.Warn("news source failed", "source", e.Source, "error", e.Message)
	}

	data, err := formatter.RenderNews(result, format, r.palette)
	if err != nil {
		return fmt.Errorf("failed to render news: %w", err)
	}
	return r.writeOutput("", data)
}

// NewsStatus reports whether the news API answers and how much quota remains.
func (r *Runner) NewsStatus(ctx context.Context, cmd *cli.Command) error {
	if r.newsAPI == nil {
		return fmt.Errorf("%w: set credentials.news.api_key or %s", shared.ErrMissingCredentials, shared.EnvNewsAPIKey)
	}

	status, err := r.newsAPI.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to check news API: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	state := "available"
	if !status.Available {
		state = "unavailable"
	}
	r.writePlain("News API: %s (status %d)\n", state, status.StatusCode)
	if status.Remaining >= 0 {
		r.writePlain("Remaining requests: %d\n", status.Remaining)
	}
	return nil
}

// Genres lists catalog genres next to the fixed news topics.
func (r *Runner) Genres(ctx context.Context, cmd *cli.Command) error {
	music, err := r.playlistGenerator().AvailableGenres(ctx)
	if err != nil {
		r.logger.Warn("music genres unavailable", "error", err)
	}
	if music == nil {
		music = []string{}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string][]string{"music": music, "news": services.NewsGenres}, true)
	}

	r.writePlain("Music genres:\n")
	if len(music) == 0 {
		r.writePlain("  (unavailable)\n")
	}
	for _, g := range music {
		r.writePlain("  %s\n", g)
	}
	r.writePlain("\nNews genres:\n  %s\n", strings.Join(services.NewsGenres, ", "))
	return nil
}
