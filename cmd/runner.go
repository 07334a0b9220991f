package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/formatter"
	"github.com/desertthunder/mdash/internal/repositories"
	"github.com/desertthunder/mdash/internal/services"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/desertthunder/mdash/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	music   services.MusicSource
	news    []services.NewsSource
	newsAPI *services.NewsAPIService
	api     *services.APIService
	logger  *log.Logger
	output  io.Writer
	palette *formatter.Palette

	storeMu   sync.Mutex
	store     repositories.Store
	openStore func(ctx context.Context, cfg *shared.Config) (repositories.Store, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Music   services.MusicSource
	News    []services.NewsSource
	NewsAPI *services.NewsAPIService
	API     *services.APIService
	Store   repositories.Store
	Logger  *log.Logger
	Output  io.Writer
	Palette *formatter.Palette
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:    opts.Config,
		music:     opts.Music,
		news:      opts.News,
		newsAPI:   opts.NewsAPI,
		api:       opts.API,
		store:     opts.Store,
		openStore: repositories.Open,
		logger:    opts.Logger,
		output:    opts.Output,
		palette:   opts.Palette,
	}
}

// servicesFromConfig builds the collaborators described by the credentials section.
//
// A music source that cannot be authenticated is left unset so that commands report it as unavailable.
func servicesFromConfig(cfg *shared.Config, client *http.Client, logger *log.Logger) RunnerOpts {
	opts := RunnerOpts{Config: cfg, Logger: logger}

	var appleOpts []services.AppleMusicOption
	if client != nil {
		appleOpts = append(appleOpts, services.WithHTTPClient(client))
	}
	if apple, err := services.NewAppleMusicServiceFromConfig(cfg.Credentials.AppleMusic, logger, appleOpts...); err == nil {
		opts.Music = apple
		opts.API = services.NewAppleMusicAPIService(apple)
	} else {
		logger.Debug("apple music unavailable", "error", err)
	}

	if cfg.Credentials.News.APIKey != "" {
		opts.NewsAPI = services.NewNewsAPIService(cfg.Credentials.News.APIKey, cfg.Credentials.News.BaseURL, client)
		opts.News = append(opts.News, opts.NewsAPI)
	}
	opts.News = append(opts.News, services.NewNMEScraper(cfg.Credentials.News.ScrapeURL, client))

	return opts
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, statsCommand, newsCommand, genresCommand, playlistCommand, playsCommand, apiCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// recordStore opens the configured record store on first use.
func (r *Runner) recordStore(ctx context.Context) (repositories.Store, error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	if r.store != nil {
		return r.store, nil
	}
	store, err := r.openStore(ctx, r.config)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	r.store = store
	return store, nil
}

// Close releases the record store, if one was opened.
func (r *Runner) Close() error {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

func (r *Runner) retryPolicy() shared.RetryPolicy {
	return r.config.Retry.Policy()
}

// statsEngine builds a [tasks.StatsEngine]. A nil store runs without persisted records.
func (r *Runner) statsEngine(store repositories.Store) *tasks.StatsEngine {
	opts := []tasks.EngineOption{
		tasks.WithRetryPolicy(r.retryPolicy()),
		tasks.WithEngineLogger(shared.WithLogger(r.logger, "component", "stats")),
	}
	if store != nil {
		opts = append(opts, tasks.WithRecordStore(store))
	}
	return tasks.NewStatsEngine(r.music, opts...)
}

func (r *Runner) newsAggregator() *tasks.NewsAggregator {
	return tasks.NewNewsAggregator(shared.WithLogger(r.logger, "component", "news"), r.retryPolicy(), r.news...)
}

func (r *Runner) playlistGenerator(opts ...tasks.GeneratorOption) *tasks.PlaylistGenerator {
	base := []tasks.GeneratorOption{
		tasks.WithSeedDelay(r.config.Playlist.SeedDelay()),
		tasks.WithGeneratorRetry(r.retryPolicy()),
		tasks.WithGeneratorLogger(shared.WithLogger(r.logger, "component", "playlist")),
	}
	if r.config.Playlist.Size > 0 {
		base = append(base, tasks.WithPlaylistSize(r.config.Playlist.Size))
	}
	return tasks.NewPlaylistGenerator(r.music, append(base, opts...)...)
}

// trackProgress starts a consumer that logs progress updates.
//
// The returned stop function closes the channel and waits for the consumer to drain it.
func (r *Runner) trackProgress() (chan<- tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()
	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

// renderPalette returns the palette for output written to path. Files never get ANSI styling.
func (r *Runner) renderPalette(path string) *formatter.Palette {
	if path != "" {
		return formatter.PlainPalette()
	}
	return r.palette
}

// writeOutput writes data to path, or to the runner's output when path is empty.
func (r *Runner) writeOutput(path string, data []byte) error {
	if path == "" {
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if len(data) > 0 && data[len(data)-1] != '\n' {
			if _, err := r.output.Write([]byte("\n")); err != nil {
				return fmt.Errorf("failed to write newline: %w", err)
			}
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.logger.Info("output written", "path", path, "bytes", len(data))
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// isNotImplemented reports whether err marks a feature the configured backend does not offer.
func isNotImplemented(err error) bool {
	return errors.Is(err, shared.ErrNotImplemented)
}
