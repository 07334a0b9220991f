package tasks

import (
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

const (
	MaxTopArtists = 10
	MaxTopTracks  = 10
	MaxHistory    = 50
	HistoryWindow = 7 * 24 * time.Hour
)

// HistorySource supplies stored listening sessions.
//
// A nil HistorySource means no store is wired in and the history is synthesized from the sample.
type HistorySource func() ([]models.ListeningSession, error)

// Assembler builds [models.StreamingStats] from an [AggregateResult].
type Assembler struct {
	logger *log.Logger
	now    func() time.Time
}

// NewAssembler creates an [Assembler]. A nil logger falls back to [log.Default].
func NewAssembler(logger *log.Logger, now func() time.Time) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{logger: logger, now: now}
}

// Assemble is [Assembler.Assemble] with the default logger and clock.
func Assemble(agg AggregateResult, playCounts map[string]int, history HistorySource) models.StreamingStats {
	return NewAssembler(nil, nil).Assemble(agg, playCounts, history)
}

// Assemble combines the aggregate with authoritative play counts and listening history.
//
// A count present in playCounts replaces the local tally for that track. A failing history source is
// logged and replaced by synthesized sessions; it never fails the call. WeeklyStats.TopGenres is
// left empty for the caller to fill.
func (a *Assembler) Assemble(agg AggregateResult, playCounts map[string]int, history HistorySource) models.StreamingStats {
	now := a.now()

	tracks := slices.Clone(agg.TrackStats)
	for i := range tracks {
		if count, ok := playCounts[tracks[i].ID]; ok {
			tracks[i].PlayCount = count
			tracks[i].TotalListeningTimeMinutes = count * models.MinutesPerPlay
		}
	}
	sortTrackStats(tracks)

	total := 0
	for _, t := range tracks {
		total += t.TotalListeningTimeMinutes
	}

	sessions := a.history(agg.AllTracks, history, now)
	totalTracks := len(agg.AllTracks)

	return models.StreamingStats{
		TotalListeningTimeMinutes: total,
		TopArtists:                head(agg.ArtistStats, MaxTopArtists),
		TopTracks:                 head(tracks, MaxTopTracks),
		WeeklyStats: models.WeeklyStats{
			WeekStartDate:             now.Add(-HistoryWindow),
			TotalTracks:               totalTracks,
			TotalArtists:              len(agg.ArtistStats),
			TotalListeningTimeMinutes: totalTracks * models.MinutesPerPlay,
			TopGenres:                 []string{},
			MostActiveDay:             mostActiveDay(sessions, now),
			AverageTracksPerDay:       totalTracks / 7,
		},
		ListeningHistory: sessions,
	}
}

func (a *Assembler) history(all []models.Track, source HistorySource, now time.Time) []models.ListeningSession {
	if source == nil {
		return synthesizeHistory(all, now)
	}

	sessions, err := source()
	if err != nil {
		a.logger.Warn("listening history unavailable, synthesizing from sample", "branch", "history", "error", err)
		return synthesizeHistory(all, now)
	}

	cutoff := now.Add(-HistoryWindow)
	recent := make([]models.ListeningSession, 0, len(sessions))
	for _, s := range sessions {
		if !s.StartTime.Before(cutoff) {
			recent = append(recent, s)
		}
	}
	slices.SortStableFunc(recent, func(x, y models.ListeningSession) int {
		return y.StartTime.Compare(x.StartTime)
	})
	return head(recent, MaxHistory)
}

// synthesizeHistory makes one single-track session per sampled track, an hour apart, newest first.
func synthesizeHistory(all []models.Track, now time.Time) []models.ListeningSession {
	all = head(all, MaxHistory)
	sessions := make([]models.ListeningSession, 0, len(all))
	for i, track := range all {
		sessions = append(sessions, models.ListeningSession{
			ID:              shared.GenerateID(),
			StartTime:       now.Add(-time.Duration(i) * time.Hour),
			DurationMinutes: models.MinutesPerPlay,
			Tracks:          []models.Track{track},
		})
	}
	return sessions
}

// mostActiveDay returns the weekday with the most sessions, earliest weekday on ties, or today's when empty.
func mostActiveDay(sessions []models.ListeningSession, now time.Time) string {
	if len(sessions) == 0 {
		return now.Weekday().String()
	}

	var counts [7]int
	for _, s := range sessions {
		counts[s.StartTime.In(now.Location()).Weekday()]++
	}

	best := time.Sunday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best.String()
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
