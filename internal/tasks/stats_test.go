package tasks

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

// 2025-06-11 is a Wednesday.
var fixedNow = time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

func testAssembler() *Assembler {
	return NewAssembler(shared.NewLogger(io.Discard), func() time.Time { return fixedNow })
}

func TestAssemble(t *testing.T) {
	t.Run("empty aggregate", func(t *testing.T) {
		stats := testAssembler().Assemble(Aggregate(nil, nil, nil), map[string]int{}, nil)

		if stats.TotalListeningTimeMinutes != 0 {
			t.Errorf("expected 0 minutes, got %d", stats.TotalListeningTimeMinutes)
		}
		if stats.WeeklyStats.AverageTracksPerDay != 0 {
			t.Errorf("expected 0 tracks per day, got %d", stats.WeeklyStats.AverageTracksPerDay)
		}
		if stats.WeeklyStats.MostActiveDay != "Wednesday" {
			t.Errorf("expected today's weekday, got %s", stats.WeeklyStats.MostActiveDay)
		}
		if len(stats.ListeningHistory) != 0 {
			t.Errorf("expected no history, got %d", len(stats.ListeningHistory))
		}
		if stats.TopArtists == nil || stats.TopTracks == nil || stats.WeeklyStats.TopGenres == nil {
			t.Error("expected empty, non-nil slices")
		}
	})

	t.Run("authoritative counts override local tallies", func(t *testing.T) {
		agg := Aggregate(append(makeTracks("A", "a", 3), makeTracks("A", "a", 1)...), nil, nil)

		stats := testAssembler().Assemble(agg, map[string]int{"a3": 42, "a2": 0}, nil)

		byID := map[string]models.TrackStats{}
		for _, s := range stats.TopTracks {
			byID[s.ID] = s
		}
		if byID["a3"].PlayCount != 42 {
			t.Errorf("expected a3 play count 42, got %d", byID["a3"].PlayCount)
		}
		if byID["a3"].TotalListeningTimeMinutes != 126 {
			t.Errorf("expected recomputed minutes 126, got %d", byID["a3"].TotalListeningTimeMinutes)
		}
		if byID["a2"].PlayCount != 0 {
			t.Errorf("expected a2 overridden to 0, got %d", byID["a2"].PlayCount)
		}
		if byID["a1"].PlayCount != 2 {
			t.Errorf("expected local tally 2 for a1, got %d", byID["a1"].PlayCount)
		}
		if stats.TopTracks[0].ID != "a3" {
			t.Errorf("expected re-sorted top track a3, got %s", stats.TopTracks[0].ID)
		}
	})

	t.Run("caps", func(t *testing.T) {
		var tracks []models.Track
		for i := range 15 {
			tracks = append(tracks, makeTracks(fmt.Sprintf("Artist %d", i), fmt.Sprintf("t%d-", i), 4)...)
		}
		agg := Aggregate(tracks, nil, nil)

		stats := testAssembler().Assemble(agg, nil, nil)

		if len(stats.TopArtists) != MaxTopArtists {
			t.Errorf("expected %d artists, got %d", MaxTopArtists, len(stats.TopArtists))
		}
		if len(stats.TopTracks) != MaxTopTracks {
			t.Errorf("expected %d tracks, got %d", MaxTopTracks, len(stats.TopTracks))
		}
		if len(stats.ListeningHistory) != MaxHistory {
			t.Errorf("expected %d sessions, got %d", MaxHistory, len(stats.ListeningHistory))
		}
		if stats.WeeklyStats.TotalTracks != 60 || stats.WeeklyStats.TotalArtists != 15 {
			t.Errorf("unexpected weekly totals %+v", stats.WeeklyStats)
		}
		if stats.WeeklyStats.AverageTracksPerDay != 8 {
			t.Errorf("expected 60/7 = 8 tracks per day, got %d", stats.WeeklyStats.AverageTracksPerDay)
		}
		if stats.TotalListeningTimeMinutes != 180 {
			t.Errorf("expected 180 minutes, got %d", stats.TotalListeningTimeMinutes)
		}
		if !stats.WeeklyStats.WeekStartDate.Equal(fixedNow.Add(-7 * 24 * time.Hour)) {
			t.Errorf("unexpected week start %v", stats.WeeklyStats.WeekStartDate)
		}
	})

	t.Run("synthesized history", func(t *testing.T) {
		agg := Aggregate(makeTracks("A", "a", 3), nil, nil)

		stats := testAssembler().Assemble(agg, nil, nil)

		if len(stats.ListeningHistory) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(stats.ListeningHistory))
		}
		for i, s := range stats.ListeningHistory {
			want := fixedNow.Add(-time.Duration(i) * time.Hour)
			if !s.StartTime.Equal(want) {
				t.Errorf("session %d starts at %v, want %v", i, s.StartTime, want)
			}
			if s.DurationMinutes != 3 || len(s.Tracks) != 1 || s.Tracks[0].ID != agg.AllTracks[i].ID {
				t.Errorf("unexpected session %+v", s)
			}
		}
	})

	t.Run("stored history filtered and sorted", func(t *testing.T) {
		track := models.Track{ID: "s"}
		sessions := []models.ListeningSession{
			{ID: "old", StartTime: fixedNow.Add(-8 * 24 * time.Hour), Tracks: []models.Track{track}},
			{ID: "mon", StartTime: time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC), Tracks: []models.Track{track}},
			{ID: "tue", StartTime: time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), Tracks: []models.Track{track}},
			{ID: "mon2", StartTime: time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC), Tracks: []models.Track{track}},
		}
		source := func() ([]models.ListeningSession, error) { return sessions, nil }

		stats := testAssembler().Assemble(Aggregate(makeTracks("A", "a", 5), nil, nil), nil, source)

		got := []string{}
		for _, s := range stats.ListeningHistory {
			got = append(got, s.ID)
		}
		want := []string{"tue", "mon2", "mon"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("history = %v, want %v", got, want)
		}
		if stats.WeeklyStats.MostActiveDay != "Monday" {
			t.Errorf("expected Monday, got %s", stats.WeeklyStats.MostActiveDay)
		}
	})

	t.Run("empty stored history is kept", func(t *testing.T) {
		source := func() ([]models.ListeningSession, error) { return nil, nil }

		stats := testAssembler().Assemble(Aggregate(makeTracks("A", "a", 5), nil, nil), nil, source)

		if len(stats.ListeningHistory) != 0 {
			t.Errorf("expected no sessions, got %d", len(stats.ListeningHistory))
		}
	})

	t.Run("failing history source falls back", func(t *testing.T) {
		source := func() ([]models.ListeningSession, error) { return nil, errors.New("store offline") }

		stats := testAssembler().Assemble(Aggregate(makeTracks("A", "a", 2), nil, nil), nil, source)

		if len(stats.ListeningHistory) != 2 {
			t.Errorf("expected 2 synthesized sessions, got %d", len(stats.ListeningHistory))
		}
	})

	t.Run("package level helper", func(t *testing.T) {
		stats := Assemble(Aggregate(makeTracks("A", "a", 7), nil, nil), nil, nil)

		if stats.WeeklyStats.AverageTracksPerDay != 1 {
			t.Errorf("expected 1 track per day, got %d", stats.WeeklyStats.AverageTracksPerDay)
		}
	})
}

func TestMostActiveDay(t *testing.T) {
	tests := []struct {
		name string
		days []time.Weekday
		want string
	}{
		{name: "none", days: nil, want: "Wednesday"},
		{name: "single", days: []time.Weekday{time.Friday}, want: "Friday"},
		{name: "tie picks earliest weekday", days: []time.Weekday{time.Saturday, time.Tuesday}, want: "Tuesday"},
		{name: "majority", days: []time.Weekday{time.Sunday, time.Thursday, time.Thursday}, want: "Thursday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sessions []models.ListeningSession
			// 2025-06-08 is a Sunday.
			sunday := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
			for _, d := range tt.days {
				sessions = append(sessions, models.ListeningSession{StartTime: sunday.AddDate(0, 0, int(d))})
			}

			if got := mostActiveDay(sessions, fixedNow); got != tt.want {
				t.Errorf("mostActiveDay() = %s, want %s", got, tt.want)
			}
		})
	}
}
