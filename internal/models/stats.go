package models

import (
	"strings"
	"time"
)

// ArtistStats rolls up plays for a single artist name.
type ArtistStats struct {
	ID                        string  `json:"id"`
	Name                      string  `json:"name"`
	PlayCount                 int     `json:"playCount"`
	TotalListeningTimeMinutes int     `json:"totalListeningTime"`
	TopTracks                 []Track `json:"topTracks"`
}

// ArtistID derives the artist identifier from its display name.
func ArtistID(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// TrackStats rolls up plays for a single track.
//
// PlayCount is either the local tally over the fetched sample or an authoritative counter from a record store.
type TrackStats struct {
	ID                        string    `json:"id"`
	Track                     Track     `json:"track"`
	PlayCount                 int       `json:"playCount"`
	TotalListeningTimeMinutes int       `json:"totalListeningTime"`
	LastPlayed                time.Time `json:"lastPlayed"`
}

// WeeklyStats is a snapshot of the last seven days.
type WeeklyStats struct {
	WeekStartDate             time.Time `json:"weekStartDate"`
	TotalTracks               int       `json:"totalTracks"`
	TotalArtists              int       `json:"totalArtists"`
	TotalListeningTimeMinutes int       `json:"totalListeningTime"`
	TopGenres                 []string  `json:"topGenres"`
	MostActiveDay             string    `json:"mostActiveDay"`
	AverageTracksPerDay       int       `json:"averageTracksPerDay"`
}

// ListeningSession is a run of tracks started at StartTime.
type ListeningSession struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"duration"`
	Tracks          []Track   `json:"tracks"`
}

// StreamingStats is the aggregate returned for a stats request. It is built fresh on every request.
type StreamingStats struct {
	TotalListeningTimeMinutes int                `json:"totalListeningTime"`
	TopArtists                []ArtistStats      `json:"topArtists"`
	TopTracks                 []TrackStats       `json:"topTracks"`
	WeeklyStats               WeeklyStats        `json:"weeklyStats"`
	ListeningHistory          []ListeningSession `json:"listeningHistory"`
}
