package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/metrics"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/services"
	"github.com/desertthunder/mdash/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	RecentLimit         = 25
	RecommendationLimit = 30
	LibraryPageSize     = 25
	SampleTarget        = 100

	GenreSampleSize   = 20
	GenreBatchSize    = 5
	MaxTopGenres      = 5
	DefaultBatchPause = 500 * time.Millisecond
)

// RecordStore persists authoritative play counts and listening sessions.
//
// A missing record reads as zero or empty. Implemented by the stores in the repositories package.
type RecordStore interface {
	PlayCount(ctx context.Context, trackID string) (int, error)
	AllPlayCounts(ctx context.Context) (map[string]int, error)
	LastPlayed(ctx context.Context) (map[string]time.Time, error)
	IncrementPlayCount(ctx context.Context, track models.Track) (int, error)
	SaveSession(ctx context.Context, session models.ListeningSession) error
	SessionsSince(ctx context.Context, since time.Time) ([]models.ListeningSession, error)
}

// StatsEngine fetches listening data from a music source and assembles [models.StreamingStats].
type StatsEngine struct {
	music      services.MusicSource
	store      RecordStore
	retry      shared.RetryPolicy
	logger     *log.Logger
	now        func() time.Time
	batchPause time.Duration
}

// EngineOption configures a [StatsEngine].
type EngineOption func(*StatsEngine)

// WithRecordStore wires in authoritative play counts and stored history.
func WithRecordStore(store RecordStore) EngineOption {
	return func(e *StatsEngine) { e.store = store }
}

// WithRetryPolicy sets the backoff used for every music source call.
func WithRetryPolicy(p shared.RetryPolicy) EngineOption {
	return func(e *StatsEngine) { e.retry = p }
}

// WithEngineLogger sets the logger for branch failures.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *StatsEngine) { e.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *StatsEngine) { e.now = now }
}

// WithBatchPause sets the pause between genre resolution batches.
func WithBatchPause(d time.Duration) EngineOption {
	return func(e *StatsEngine) { e.batchPause = d }
}

// NewStatsEngine creates a [StatsEngine] over music.
func NewStatsEngine(music services.MusicSource, opts ...EngineOption) *StatsEngine {
	e := &StatsEngine{
		music:      music,
		retry:      shared.DefaultRetryPolicy(),
		logger:     log.Default(),
		now:        time.Now,
		batchPause: DefaultBatchPause,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StreamingStats runs one full stats aggregation.
//
// Recently played and recommendations are fetched concurrently, then the library is paged
// sequentially until the sample reaches [SampleTarget] or a short page ends it. Play counts,
// stored history and genres are then resolved concurrently. Only [shared.ErrUnauthorized]
// from the music source fails the call; every other branch failure degrades to an empty branch.
// Stored last-played times replace the aggregation time on the top tracks.
func (e *StatsEngine) StreamingStats(ctx context.Context, progress chan<- ProgressUpdate) (*models.StreamingStats, error) {
	if e.music == nil {
		return nil, fmt.Errorf("%w: music source not initialized", shared.ErrServiceUnavailable)
	}
	defer metrics.ObserveAggregation("stats", time.Now())

	var (
		g                   errgroup.Group
		recent, recommended []models.Track
		recentErr, recErr   error
	)

	sendProgress(progress, fetchBranchUpdate(FetchRecent, 1, "recently played tracks"))
	g.Go(func() error {
		recent, recentErr = withRetry(ctx, e, "recently_played", func(ctx context.Context) ([]models.Track, error) {
			return e.music.RecentlyPlayed(ctx, RecentLimit)
		})
		return nil
	})

	sendProgress(progress, fetchBranchUpdate(FetchRecommendations, 2, "recommendations"))
	g.Go(func() error {
		recommended, recErr = withRetry(ctx, e, "recommendations", func(ctx context.Context) ([]models.Track, error) {
			return e.music.Recommendations(ctx, RecommendationLimit)
		})
		return nil
	})
	_ = g.Wait()

	if err := firstUnauthorized(recentErr, recErr); err != nil {
		return nil, err
	}
	recent = e.branch("recently_played", recent, recentErr)
	recommended = e.branch("recommendations", recommended, recErr)

	pages, err := e.libraryPages(ctx, len(recent), progress)
	if err != nil {
		return nil, err
	}

	now := e.now()
	agg := aggregateAt(now, recent, recommended, pages)

	sendProgress(progress, fetchRecordsUpdate(len(agg.AllTracks)))
	var (
		records    errgroup.Group
		playCounts map[string]int
		lastPlayed map[string]time.Time
		sessions   []models.ListeningSession
		historyErr error
		genres     []string
	)
	if e.store != nil {
		records.Go(func() error {
			counts, err := e.store.AllPlayCounts(ctx)
			if err != nil {
				e.branchFailed("play_counts", err)
				return nil
			}
			playCounts = counts
			return nil
		})
		records.Go(func() error {
			played, err := e.store.LastPlayed(ctx)
			if err != nil {
				e.branchFailed("last_played", err)
				return nil
			}
			lastPlayed = played
			return nil
		})
		records.Go(func() error {
			sessions, historyErr = e.store.SessionsSince(ctx, now.Add(-HistoryWindow))
			if historyErr != nil {
				metrics.BranchFailures.WithLabelValues("history").Inc()
			}
			return nil
		})
	}
	records.Go(func() error {
		genres = e.TopGenres(ctx, agg.AllTracks, progress)
		return nil
	})
	_ = records.Wait()

	var history HistorySource
	if e.store != nil {
		history = func() ([]models.ListeningSession, error) { return sessions, historyErr }
	}

	stats := NewAssembler(e.logger, func() time.Time { return now }).Assemble(agg, playCounts, history)
	stats.WeeklyStats.TopGenres = genres
	for i, t := range stats.TopTracks {
		if at, ok := lastPlayed[t.ID]; ok {
			stats.TopTracks[i].LastPlayed = at
		}
	}

	sendProgress(progress, assembleUpdate(&stats))
	return &stats, nil
}

// libraryPages pages the user's library until recentCount plus the collected tracks reach [SampleTarget].
//
// A failing page ends pagination and keeps the pages already collected.
func (e *StatsEngine) libraryPages(ctx context.Context, recentCount int, progress chan<- ProgressUpdate) ([][]models.Track, error) {
	var pages [][]models.Track
	collected := 0

	for page := 1; recentCount+collected < SampleTarget; page++ {
		limit := min(LibraryPageSize, SampleTarget-recentCount-collected)
		offset := collected

		sendProgress(progress, libraryPageUpdate(page, offset))
		tracks, err := withRetry(ctx, e, "library", func(ctx context.Context) ([]models.Track, error) {
			return e.music.LibraryPage(ctx, limit, offset, true)
		})
		if err != nil {
			if shared.IsUnauthorized(err) {
				return nil, err
			}
			e.branchFailed("library", err, "offset", offset)
			break
		}

		pages = append(pages, tracks)
		collected += len(tracks)
		if len(tracks) < limit {
			break
		}
	}
	return pages, nil
}

// TopGenres resolves up to [MaxTopGenres] genres from the first [GenreSampleSize] tracks.
//
// Tracks are resolved in concurrent batches of [GenreBatchSize] with a pause between batches.
// A track that already carries genres is not searched. Failures yield fewer genres, never an error.
func (e *StatsEngine) TopGenres(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) []string {
	sample := head(tracks, GenreSampleSize)
	batches := (len(sample) + GenreBatchSize - 1) / GenreBatchSize

	var (
		mu    sync.Mutex
		found = map[string]bool{}
	)

	for b := 0; b < batches; b++ {
		if b > 0 && e.batchPause > 0 {
			if err := shared.SleepContext(ctx, e.batchPause); err != nil {
				break
			}
		}
		sendProgress(progress, genreBatchUpdate(b+1, batches))

		var g errgroup.Group
		for _, track := range sample[b*GenreBatchSize : min((b+1)*GenreBatchSize, len(sample))] {
			g.Go(func() error {
				genre, err := e.trackGenre(ctx, track)
				if err != nil {
					e.logger.Debug("genre lookup failed", "track", track.ID, "error", err)
					return nil
				}
				if genre != "" {
					mu.Lock()
					found[genre] = true
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	genres := make([]string, 0, len(found))
	for genre := range found {
		genres = append(genres, genre)
	}
	slices.Sort(genres)
	return head(genres, MaxTopGenres)
}

func (e *StatsEngine) trackGenre(ctx context.Context, track models.Track) (string, error) {
	if len(track.Genres) > 0 {
		return track.Genres[0], nil
	}

	term := strings.TrimSpace(track.Artist + " " + track.Title)
	hits, err := withRetry(ctx, e, "genre_search", func(ctx context.Context) ([]models.Track, error) {
		return e.music.CatalogSearch(ctx, term, 1)
	})
	if err != nil || len(hits) == 0 || len(hits[0].Genres) == 0 {
		return "", err
	}
	return hits[0].Genres[0], nil
}

// RecordPlay increments the track's stored play count and saves a single-track listening session.
func (e *StatsEngine) RecordPlay(ctx context.Context, track models.Track) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("%w: record store not configured", shared.ErrServiceUnavailable)
	}
	if track.ID == "" {
		return 0, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	count, err := e.store.IncrementPlayCount(ctx, track)
	if err != nil {
		return 0, fmt.Errorf("failed to increment play count: %w", err)
	}

	session := models.ListeningSession{
		ID:              shared.GenerateID(),
		StartTime:       e.now(),
		DurationMinutes: models.MinutesPerPlay,
		Tracks:          []models.Track{track},
	}
	if err := e.store.SaveSession(ctx, session); err != nil {
		return count, fmt.Errorf("failed to save listening session: %w", err)
	}
	return count, nil
}

// PlayCount returns the stored play count for a track, zero when it has never been recorded.
func (e *StatsEngine) PlayCount(ctx context.Context, trackID string) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("%w: record store not configured", shared.ErrServiceUnavailable)
	}
	if trackID == "" {
		return 0, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	count, err := e.store.PlayCount(ctx, trackID)
	if err != nil {
		return 0, fmt.Errorf("failed to read play count: %w", err)
	}
	return count, nil
}

// branch logs a failed branch and defaults it to empty.
func (e *StatsEngine) branch(name string, tracks []models.Track, err error) []models.Track {
	if err != nil {
		e.branchFailed(name, err)
		return []models.Track{}
	}
	return tracks
}

func (e *StatsEngine) branchFailed(name string, err error, kv ...any) {
	metrics.BranchFailures.WithLabelValues(name).Inc()
	e.logger.Warn("branch failed, continuing without it", append([]any{"branch", name, "error", err}, kv...)...)
}

// withRetry wraps op in the engine's retry policy and counts every backoff.
func withRetry[T any](ctx context.Context, e *StatsEngine, operation string, op func(context.Context) (T, error)) (T, error) {
	return shared.WithRetry(ctx, countRetries(e.retry, operation, e.logger), op)
}

func countRetries(p shared.RetryPolicy, operation string, logger *log.Logger) shared.RetryPolicy {
	next := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.Retries.WithLabelValues(operation).Inc()
		logger.Debug("rate limited, backing off", "operation", operation, "attempt", attempt, "delay", delay)
		if next != nil {
			next(attempt, delay, err)
		}
	}
	return p
}

func firstUnauthorized(errs ...error) error {
	for _, err := range errs {
		if err != nil && errors.Is(err, shared.ErrUnauthorized) {
			return err
		}
	}
	return nil
}
