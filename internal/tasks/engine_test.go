package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
	tu "github.com/desertthunder/mdash/internal/testing"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func testRetry() shared.RetryPolicy {
	return shared.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Sleep: noSleep}
}

func newTestEngine(music *tu.MockMusicSource, opts ...EngineOption) *StatsEngine {
	base := []EngineOption{
		WithRetryPolicy(testRetry()),
		WithEngineLogger(shared.NewLogger(io.Discard)),
		WithClock(func() time.Time { return fixedNow }),
		WithBatchPause(0),
	}
	return NewStatsEngine(music, append(base, opts...)...)
}

func TestStatsEngine_StreamingStats(t *testing.T) {
	ctx := context.Background()

	t.Run("empty source", func(t *testing.T) {
		stats, err := newTestEngine(&tu.MockMusicSource{}).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TotalListeningTimeMinutes != 0 || stats.WeeklyStats.AverageTracksPerDay != 0 {
			t.Errorf("expected zeroed stats, got %+v", stats)
		}
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := NewStatsEngine(nil).StreamingStats(ctx, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("library pagination", func(t *testing.T) {
		tests := []struct {
			name        string
			recent      int
			library     int
			libErr      error
			libErrAt    int
			wantOffsets []int
			wantTotal   int
		}{
			{name: "fills sample to target", recent: 10, library: 200, wantOffsets: []int{0, 25, 50, 75}, wantTotal: 100},
			{name: "short page stops", recent: 10, library: 30, wantOffsets: []int{0, 25}, wantTotal: 40},
			{name: "exact page boundary", recent: 0, library: 50, wantOffsets: []int{0, 25, 50}, wantTotal: 50},
			{name: "recent fills target", recent: 25, library: 200, wantOffsets: []int{0, 25, 50}, wantTotal: 100},
			{name: "failing page keeps collected", recent: 10, library: 200, libErr: errors.New("boom"), libErrAt: 25, wantOffsets: []int{0, 25}, wantTotal: 35},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				music := &tu.MockMusicSource{
					Recent:           makeTracks("R", "r", tt.recent),
					Library:          makeTracks("L", "l", tt.library),
					LibraryErr:       tt.libErr,
					LibraryErrOffset: tt.libErrAt,
				}

				stats, err := newTestEngine(music).StreamingStats(ctx, nil)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got := music.LibraryOffsets(); fmt.Sprint(got) != fmt.Sprint(tt.wantOffsets) {
					t.Errorf("offsets = %v, want %v", got, tt.wantOffsets)
				}
				if stats.WeeklyStats.TotalTracks != tt.wantTotal {
					t.Errorf("total tracks = %d, want %d", stats.WeeklyStats.TotalTracks, tt.wantTotal)
				}
			})
		}
	})

	t.Run("recommendations join the sample", func(t *testing.T) {
		music := &tu.MockMusicSource{
			Recent:      makeTracks("A", "a", 3),
			Recommended: makeTracks("B", "b", 40),
		}

		stats, err := newTestEngine(music).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.WeeklyStats.TotalTracks != 3+RecommendationLimit {
			t.Errorf("expected %d tracks, got %d", 3+RecommendationLimit, stats.WeeklyStats.TotalTracks)
		}
		if stats.TopArtists[0].Name != "B" {
			t.Errorf("expected top artist B, got %s", stats.TopArtists[0].Name)
		}
	})

	t.Run("unauthorized is returned", func(t *testing.T) {
		unauthorized := fmt.Errorf("%w: status 401", shared.ErrUnauthorized)
		tests := []struct {
			name  string
			music *tu.MockMusicSource
		}{
			{name: "recently played", music: &tu.MockMusicSource{RecentErr: unauthorized}},
			{name: "recommendations", music: &tu.MockMusicSource{RecommendErr: unauthorized}},
			{name: "library", music: &tu.MockMusicSource{LibraryErr: unauthorized}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				stats, err := newTestEngine(tt.music).StreamingStats(ctx, nil)
				if !errors.Is(err, shared.ErrUnauthorized) {
					t.Errorf("expected ErrUnauthorized, got %v", err)
				}
				if stats != nil {
					t.Error("expected nil stats")
				}
			})
		}
	})

	t.Run("other branch failures degrade", func(t *testing.T) {
		music := &tu.MockMusicSource{
			RecentErr:   &shared.APIError{Source: "mock", StatusCode: 500},
			Recommended: makeTracks("B", "b", 2),
		}

		stats, err := newTestEngine(music).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.WeeklyStats.TotalTracks != 2 {
			t.Errorf("expected 2 tracks from recommendations, got %d", stats.WeeklyStats.TotalTracks)
		}
	})

	t.Run("rate limited calls are retried", func(t *testing.T) {
		var calls atomic.Int32
		music := &tu.MockMusicSource{
			Recent: makeTracks("A", "a", 2),
			SearchFn: func(ctx context.Context, term string, limit int) ([]models.Track, error) {
				if calls.Add(1) <= 2 {
					return nil, &shared.RateLimitError{Source: "mock"}
				}
				return []models.Track{{ID: "hit", Genres: []string{"Pop"}}}, nil
			},
		}

		stats, err := newTestEngine(music).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(stats.WeeklyStats.TopGenres) != 1 || stats.WeeklyStats.TopGenres[0] != "Pop" {
			t.Errorf("expected [Pop], got %v", stats.WeeklyStats.TopGenres)
		}
	})

	t.Run("authoritative play counts", func(t *testing.T) {
		music := &tu.MockMusicSource{Recent: append(makeTracks("A", "a", 3), makeTracks("A", "a", 1)...)}
		store := tu.NewMockRecordStore(map[string]int{"a2": 99})

		stats, err := newTestEngine(music, WithRecordStore(store)).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TopTracks[0].ID != "a2" || stats.TopTracks[0].PlayCount != 99 {
			t.Errorf("expected a2 with 99 plays first, got %s with %d", stats.TopTracks[0].ID, stats.TopTracks[0].PlayCount)
		}
	})

	t.Run("stored last played", func(t *testing.T) {
		music := &tu.MockMusicSource{Recent: makeTracks("A", "a", 3)}
		store := tu.NewMockRecordStore(map[string]int{"a1": 2})
		played := fixedNow.Add(-36 * time.Hour)
		store.SetLastPlayed("a1", played)

		stats, err := newTestEngine(music, WithRecordStore(store)).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, ts := range stats.TopTracks {
			want := fixedNow
			if ts.ID == "a1" {
				want = played
			}
			if !ts.LastPlayed.Equal(want) {
				t.Errorf("%s: expected last played %s, got %s", ts.ID, want, ts.LastPlayed)
			}
		}
	})

	t.Run("stored history", func(t *testing.T) {
		music := &tu.MockMusicSource{Recent: makeTracks("A", "a", 5)}
		store := tu.NewMockRecordStore(nil,
			models.ListeningSession{ID: "recent", StartTime: fixedNow.Add(-time.Hour)},
			models.ListeningSession{ID: "stale", StartTime: fixedNow.Add(-10 * 24 * time.Hour)},
		)

		stats, err := newTestEngine(music, WithRecordStore(store)).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(stats.ListeningHistory) != 1 || stats.ListeningHistory[0].ID != "recent" {
			t.Errorf("expected only the recent stored session, got %+v", stats.ListeningHistory)
		}
	})

	t.Run("failing store is tolerated", func(t *testing.T) {
		music := &tu.MockMusicSource{Recent: makeTracks("A", "a", 4)}
		store := &tu.MockRecordStore{Err: errors.New("store offline")}

		stats, err := newTestEngine(music, WithRecordStore(store)).StreamingStats(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TopTracks[0].PlayCount != 1 {
			t.Errorf("expected local tally, got %d", stats.TopTracks[0].PlayCount)
		}
		if len(stats.ListeningHistory) != 4 {
			t.Errorf("expected 4 synthesized sessions, got %d", len(stats.ListeningHistory))
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		music := &tu.MockMusicSource{Recent: makeTracks("A", "a", 3), Library: makeTracks("L", "l", 3)}
		progress := make(chan ProgressUpdate, 32)

		if _, err := newTestEngine(music).StreamingStats(ctx, progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		phases := map[Phase]bool{}
		var last ProgressUpdate
		for u := range progress {
			phases[u.Phase] = true
			last = u
		}
		for _, p := range []Phase{FetchRecent, FetchRecommendations, FetchLibrary, FetchRecords, ResolveGenres, AssembleStats} {
			if !phases[p] {
				t.Errorf("missing %s update", p)
			}
		}
		if last.Phase != AssembleStats {
			t.Errorf("expected final update to be %s, got %s", AssembleStats, last.Phase)
		}
		if _, ok := last.Data.(*models.StreamingStats); !ok {
			t.Errorf("expected stats in final update data, got %T", last.Data)
		}
	})

	t.Run("full progress channel does not block", func(t *testing.T) {
		music := &tu.MockMusicSource{Recent: makeTracks("A", "a", 3)}
		progress := make(chan ProgressUpdate)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = newTestEngine(music).StreamingStats(ctx, progress)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("StreamingStats blocked on an unread progress channel")
		}
	})
}

func TestStatsEngine_TopGenres(t *testing.T) {
	ctx := context.Background()

	t.Run("uses track genres and search hits", func(t *testing.T) {
		tracks := []models.Track{
			{ID: "1", Artist: "A", Title: "One", Genres: []string{"Rock", "Alternative"}},
			{ID: "2", Artist: "B", Title: "Two"},
			{ID: "3", Artist: "C", Title: "Three"},
		}
		music := &tu.MockMusicSource{
			SearchFn: func(ctx context.Context, term string, limit int) ([]models.Track, error) {
				switch term {
				case "B Two":
					return []models.Track{{ID: "x", Genres: []string{"Jazz"}}, {ID: "y", Genres: []string{"Blues"}}}, nil
				default:
					return []models.Track{}, nil
				}
			},
		}

		got := newTestEngine(music).TopGenres(ctx, tracks, nil)

		if fmt.Sprint(got) != fmt.Sprint([]string{"Jazz", "Rock"}) {
			t.Errorf("TopGenres() = %v, want [Jazz Rock]", got)
		}
		terms := music.SearchTerms()
		if len(terms) != 2 {
			t.Errorf("expected 2 searches, got %v", terms)
		}
	})

	t.Run("samples first twenty tracks and caps at five", func(t *testing.T) {
		tracks := makeTracks("A", "a", 30)
		music := &tu.MockMusicSource{
			SearchFn: func(ctx context.Context, term string, limit int) ([]models.Track, error) {
				return []models.Track{{ID: "x", Genres: []string{"G-" + strings.TrimPrefix(term, "A Song ")}}}, nil
			},
		}

		got := newTestEngine(music).TopGenres(ctx, tracks, nil)

		if len(music.SearchTerms()) != GenreSampleSize {
			t.Errorf("expected %d searches, got %d", GenreSampleSize, len(music.SearchTerms()))
		}
		if len(got) != MaxTopGenres {
			t.Fatalf("expected %d genres, got %v", MaxTopGenres, got)
		}
		for i := 1; i < len(got); i++ {
			if got[i] < got[i-1] {
				t.Errorf("genres not sorted: %v", got)
			}
		}
	})

	t.Run("failures yield no genres", func(t *testing.T) {
		music := &tu.MockMusicSource{
			SearchFn: func(ctx context.Context, term string, limit int) ([]models.Track, error) {
				return nil, fmt.Errorf("%w: status 401", shared.ErrUnauthorized)
			},
		}

		got := newTestEngine(music).TopGenres(ctx, makeTracks("A", "a", 3), nil)

		if len(got) != 0 {
			t.Errorf("expected no genres, got %v", got)
		}
	})

	t.Run("batches are spaced", func(t *testing.T) {
		music := &tu.MockMusicSource{}
		engine := newTestEngine(music, WithBatchPause(20*time.Millisecond))

		start := time.Now()
		engine.TopGenres(ctx, makeTracks("A", "a", 11), nil)

		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("expected two pauses between three batches, took %v", elapsed)
		}
	})
}

func TestStatsEngine_PlayCount(t *testing.T) {
	ctx := context.Background()

	t.Run("reads the store", func(t *testing.T) {
		store := tu.NewMockRecordStore(map[string]int{"t1": 7})
		engine := newTestEngine(&tu.MockMusicSource{}, WithRecordStore(store))

		if n, err := engine.PlayCount(ctx, "t1"); err != nil || n != 7 {
			t.Errorf("expected 7, got %d (%v)", n, err)
		}
		if n, err := engine.PlayCount(ctx, "unknown"); err != nil || n != 0 {
			t.Errorf("expected 0 for an unrecorded track, got %d (%v)", n, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name    string
			engine  *StatsEngine
			id      string
			wantErr error
		}{
			{name: "no store", engine: newTestEngine(&tu.MockMusicSource{}), id: "t1", wantErr: shared.ErrServiceUnavailable},
			{name: "missing id", engine: newTestEngine(&tu.MockMusicSource{}, WithRecordStore(tu.NewMockRecordStore(nil))), wantErr: shared.ErrInvalidInput},
			{name: "store failure", engine: newTestEngine(&tu.MockMusicSource{}, WithRecordStore(&tu.MockRecordStore{Err: shared.ErrNetwork})), id: "t1", wantErr: shared.ErrNetwork},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := tt.engine.PlayCount(ctx, tt.id); !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})
}

func TestStatsEngine_RecordPlay(t *testing.T) {
	ctx := context.Background()
	track := models.Track{ID: "t1", Title: "Song", Artist: "A"}

	t.Run("increments and saves a session", func(t *testing.T) {
		store := tu.NewMockRecordStore(map[string]int{"t1": 4})
		engine := newTestEngine(&tu.MockMusicSource{}, WithRecordStore(store))

		count, err := engine.RecordPlay(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 5 {
			t.Errorf("expected count 5, got %d", count)
		}

		sessions := store.Sessions()
		if len(sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(sessions))
		}
		s := sessions[0]
		if !s.StartTime.Equal(fixedNow) || s.DurationMinutes != 3 || len(s.Tracks) != 1 || s.Tracks[0].ID != "t1" || s.ID == "" {
			t.Errorf("unexpected session %+v", s)
		}
	})

	t.Run("new track starts at one", func(t *testing.T) {
		store := tu.NewMockRecordStore(nil)
		count, err := newTestEngine(&tu.MockMusicSource{}, WithRecordStore(store)).RecordPlay(ctx, track)
		if err != nil || count != 1 {
			t.Errorf("expected count 1, got %d (%v)", count, err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name    string
			engine  *StatsEngine
			track   models.Track
			wantErr error
		}{
			{name: "no store", engine: newTestEngine(&tu.MockMusicSource{}), track: track, wantErr: shared.ErrServiceUnavailable},
			{name: "missing id", engine: newTestEngine(&tu.MockMusicSource{}, WithRecordStore(tu.NewMockRecordStore(nil))), track: models.Track{Title: "x"}, wantErr: shared.ErrInvalidInput},
			{name: "store failure", engine: newTestEngine(&tu.MockMusicSource{}, WithRecordStore(&tu.MockRecordStore{Err: shared.ErrNetwork})), track: track, wantErr: shared.ErrNetwork},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tt.engine.RecordPlay(ctx, tt.track)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})
}
