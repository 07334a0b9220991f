package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/services"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

const (
	PlaylistSize          = 20
	SeedSearchLimit       = 10
	WeeklyRecommendations = 10
	DefaultSeedDelay      = 500 * time.Millisecond

	WeeklyPlaylistName        = "Your Weekly Mix"
	WeeklyPlaylistDescription = "Personalized playlist based on your Apple Music listening history"
	WeeklyPlaylistGenre       = "Mixed"
)

// PlaylistGenerator builds playlists from catalog searches seeded by tracks and genres.
type PlaylistGenerator struct {
	music   services.MusicSource
	limiter *rate.Limiter
	retry   shared.RetryPolicy
	logger  *log.Logger
	now     func() time.Time
	size    int

	mu  sync.Mutex
	rng *rand.Rand
}

// GeneratorOption configures a [PlaylistGenerator].
type GeneratorOption func(*PlaylistGenerator)

// WithSeedDelay sets the minimum spacing between seed searches. Zero disables spacing.
func WithSeedDelay(d time.Duration) GeneratorOption {
	return func(g *PlaylistGenerator) { g.limiter = seedLimiter(d) }
}

// WithShuffleSeed makes the shuffle deterministic.
func WithShuffleSeed(seed uint64) GeneratorOption {
	return func(g *PlaylistGenerator) { g.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithPlaylistSize overrides [PlaylistSize].
func WithPlaylistSize(n int) GeneratorOption {
	return func(g *PlaylistGenerator) {
		if n > 0 {
			g.size = n
		}
	}
}

// WithGeneratorRetry sets the backoff used for catalog calls.
func WithGeneratorRetry(p shared.RetryPolicy) GeneratorOption {
	return func(g *PlaylistGenerator) { g.retry = p }
}

// WithGeneratorLogger sets the logger for skipped seeds.
func WithGeneratorLogger(l *log.Logger) GeneratorOption {
	return func(g *PlaylistGenerator) { g.logger = l }
}

// WithGeneratorClock replaces time.Now.
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *PlaylistGenerator) { g.now = now }
}

// NewPlaylistGenerator creates a [PlaylistGenerator] over music.
func NewPlaylistGenerator(music services.MusicSource, opts ...GeneratorOption) *PlaylistGenerator {
	g := &PlaylistGenerator{
		music:   music,
		limiter: seedLimiter(DefaultSeedDelay),
		retry:   shared.DefaultRetryPolicy(),
		logger:  log.Default(),
		now:     time.Now,
		size:    PlaylistSize,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func seedLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Generate returns up to the playlist size of tracks similar to seeds, in shuffled order.
//
// Each seed with an id is searched as "{artist} {title} {genre}". Seeds and repeats are dropped.
// When the pool is short and genre is set, one genre-only search fills the remaining slots.
// [shared.ErrUnauthorized] aborts; other seed failures are skipped.
func (g *PlaylistGenerator) Generate(ctx context.Context, seeds []models.Track, genre string, progress chan<- ProgressUpdate) ([]models.Track, error) {
	if g.music == nil {
		return nil, fmt.Errorf("%w: music source not initialized", shared.ErrServiceUnavailable)
	}

	excluded := map[string]bool{}
	for _, seed := range seeds {
		if seed.ID != "" {
			excluded[seed.ID] = true
		}
	}

	pool := []models.Track{}
	collect := func(tracks []models.Track) {
		for _, t := range tracks {
			if excluded[t.ID] {
				continue
			}
			excluded[t.ID] = true
			pool = append(pool, t)
		}
	}

	for i, seed := range seeds {
		if seed.ID == "" {
			continue
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		sendProgress(progress, seedSearchUpdate(i+1, len(seeds), &seed))

		term := strings.Join(strings.Fields(fmt.Sprintf("%s %s %s", seed.Artist, seed.Title, genre)), " ")
		results, err := g.search(ctx, term, SeedSearchLimit)
		if err != nil {
			if shared.IsUnauthorized(err) || ctx.Err() != nil {
				return nil, err
			}
			g.logger.Warn("seed search failed, skipping", "seed", seed.ID, "error", err)
			continue
		}
		collect(results)
	}

	if remaining := g.size - len(pool); remaining > 0 && genre != "" {
		sendProgress(progress, topUpUpdate(genre, remaining))
		results, err := g.search(ctx, genre, remaining)
		switch {
		case err == nil:
			collect(results)
		case shared.IsUnauthorized(err):
			return nil, err
		default:
			g.logger.Warn("genre search failed", "genre", genre, "error", err)
		}
	}

	sendProgress(progress, shuffleUpdate(len(pool)))
	g.shuffle(pool)
	return head(pool, g.size), nil
}

func (g *PlaylistGenerator) search(ctx context.Context, term string, limit int) ([]models.Track, error) {
	policy := countRetries(g.retry, "catalog_search", g.logger)
	return shared.WithRetry(ctx, policy, func(ctx context.Context) ([]models.Track, error) {
		return g.music.CatalogSearch(ctx, term, limit)
	})
}

func (g *PlaylistGenerator) shuffle(tracks []models.Track) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
}

// BuildPlaylist wraps generated tracks in a [models.PlaylistGenerated] playlist.
func (g *PlaylistGenerator) BuildPlaylist(name string, tracks []models.Track, genre string, mood models.PlaylistMood) models.Playlist {
	if name == "" {
		name = "Generated Playlist"
		if genre != "" {
			name = genre + " Mix"
		}
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	return models.Playlist{
		ID:        shared.GenerateID(),
		Name:      name,
		CreatedAt: g.now(),
		Tracks:    tracks,
		Type:      models.PlaylistGenerated,
		Mood:      mood,
		Genre:     genre,
	}
}

// WeeklyPlaylist builds the weekly mix from the user's recommendations.
//
// The schedule repeats on today's weekday at the current time of day.
func (g *PlaylistGenerator) WeeklyPlaylist(ctx context.Context) (*models.Playlist, error) {
	if g.music == nil {
		return nil, fmt.Errorf("%w: music source not initialized", shared.ErrServiceUnavailable)
	}

	policy := countRetries(g.retry, "recommendations", g.logger)
	tracks, err := shared.WithRetry(ctx, policy, func(ctx context.Context) ([]models.Track, error) {
		return g.music.Recommendations(ctx, WeeklyRecommendations)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recommendations: %w", err)
	}

	now := g.now()
	next, err := NextUpdate(models.FrequencyWeekly, now, now)
	if err != nil {
		return nil, err
	}
	day := int(now.Weekday()) + 1

	return &models.Playlist{
		ID:          shared.GenerateID(),
		Name:        WeeklyPlaylistName,
		Description: WeeklyPlaylistDescription,
		CreatedAt:   now,
		Tracks:      head(tracks, WeeklyRecommendations),
		Type:        models.PlaylistWeekly,
		Mood:        models.MoodEnergetic,
		Genre:       WeeklyPlaylistGenre,
		Schedule: &models.PlaylistSchedule{
			Frequency:   models.FrequencyWeekly,
			DayOfWeek:   &day,
			Time:        now,
			LastUpdated: now,
			NextUpdate:  next,
		},
	}, nil
}

// AvailableGenres lists the catalog's music genres.
func (g *PlaylistGenerator) AvailableGenres(ctx context.Context) ([]string, error) {
	if g.music == nil {
		return nil, fmt.Errorf("%w: music source not initialized", shared.ErrServiceUnavailable)
	}
	policy := countRetries(g.retry, "genres", g.logger)
	return shared.WithRetry(ctx, policy, func(ctx context.Context) ([]string, error) {
		return g.music.AvailableGenres(ctx)
	})
}

// ScheduleSpec returns the cron expression for a schedule anchored at the weekday, day of month and time of at.
func ScheduleSpec(freq models.ScheduleFrequency, at time.Time) (string, error) {
	switch freq {
	case models.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()), nil
	case models.FrequencyWeekly:
		return fmt.Sprintf("%d %d * * %d", at.Minute(), at.Hour(), int(at.Weekday())), nil
	case models.FrequencyMonthly:
		return fmt.Sprintf("%d %d %d * *", at.Minute(), at.Hour(), at.Day()), nil
	default:
		return "", fmt.Errorf("%w: unknown schedule frequency %q", shared.ErrInvalidArgument, freq)
	}
}

// NextUpdate returns the first run of the schedule anchored at anchor that falls strictly after from.
func NextUpdate(freq models.ScheduleFrequency, anchor, from time.Time) (time.Time, error) {
	spec, err := ScheduleSpec(freq, anchor)
	if err != nil {
		return time.Time{}, err
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return schedule.Next(from), nil
}
