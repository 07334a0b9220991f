package tasks

import (
	"slices"
	"time"

	"github.com/desertthunder/mdash/internal/models"
)

// MaxArtistTopTracks caps [models.ArtistStats.TopTracks].
const MaxArtistTopTracks = 5

// AggregateResult is the output of [Aggregate].
type AggregateResult struct {
	ArtistStats []models.ArtistStats
	TrackStats  []models.TrackStats
	AllTracks   []models.Track
}

// Aggregate merges recently played, library and recommended tracks into artist and track rollups.
//
// AllTracks is the concatenation recent, then library pages in fetch order, then recommended.
// Both rollups are sorted by play count, descending, with ties kept in first-appearance order.
func Aggregate(recent, recommended []models.Track, libraryPages [][]models.Track) AggregateResult {
	return aggregateAt(time.Now(), recent, recommended, libraryPages)
}

func aggregateAt(now time.Time, recent, recommended []models.Track, libraryPages [][]models.Track) AggregateResult {
	size := len(recent) + len(recommended)
	for _, page := range libraryPages {
		size += len(page)
	}

	all := make([]models.Track, 0, size)
	all = append(all, recent...)
	for _, page := range libraryPages {
		all = append(all, page...)
	}
	all = append(all, recommended...)

	return AggregateResult{
		ArtistStats: rollupArtists(all),
		TrackStats:  rollupTracks(all, now),
		AllTracks:   all,
	}
}

func rollupArtists(all []models.Track) []models.ArtistStats {
	index := map[string]int{}
	seen := map[string]map[string]bool{}
	stats := []models.ArtistStats{}

	for _, track := range all {
		i, ok := index[track.Artist]
		if !ok {
			i = len(stats)
			index[track.Artist] = i
			seen[track.Artist] = map[string]bool{}
			stats = append(stats, models.ArtistStats{
				ID:        models.ArtistID(track.Artist),
				Name:      track.Artist,
				TopTracks: []models.Track{},
			})
		}

		s := &stats[i]
		s.PlayCount++
		s.TotalListeningTimeMinutes = s.PlayCount * models.MinutesPerPlay
		if len(s.TopTracks) < MaxArtistTopTracks && !seen[track.Artist][track.ID] {
			seen[track.Artist][track.ID] = true
			s.TopTracks = append(s.TopTracks, track)
		}
	}

	slices.SortStableFunc(stats, func(a, b models.ArtistStats) int {
		return b.PlayCount - a.PlayCount
	})
	return stats
}

func rollupTracks(all []models.Track, now time.Time) []models.TrackStats {
	index := map[string]int{}
	stats := []models.TrackStats{}

	for _, track := range all {
		i, ok := index[track.ID]
		if !ok {
			i = len(stats)
			index[track.ID] = i
			stats = append(stats, models.TrackStats{ID: track.ID, Track: track, LastPlayed: now})
		}
		stats[i].PlayCount++
		stats[i].TotalListeningTimeMinutes = stats[i].PlayCount * models.MinutesPerPlay
	}

	sortTrackStats(stats)
	return stats
}

func sortTrackStats(stats []models.TrackStats) {
	slices.SortStableFunc(stats, func(a, b models.TrackStats) int {
		return b.PlayCount - a.PlayCount
	})
}
