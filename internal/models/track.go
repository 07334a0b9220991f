package models

import "strings"

// MinutesPerPlay is the fixed listening time estimate for a single play.
const MinutesPerPlay = 3

// Track is an immutable song value. Two tracks are the same song when their IDs match.
//
// ArtworkURL is a template containing {w} and {h} placeholders.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	AlbumTitle string   `json:"albumTitle"`
	ArtworkURL string   `json:"artworkURL"`
	Genres     []string `json:"genres,omitempty"`
}

// Artwork resolves the artwork template to a concrete square size.
func (t Track) Artwork(size string) string {
	return strings.NewReplacer("{w}", size, "{h}", size).Replace(t.ArtworkURL)
}

// RecordName is the record store key for this track's play counter.
func (t Track) RecordName() string {
	return TrackRecordName(t.ID)
}

// TrackRecordName builds the record store key "track-{id}".
func TrackRecordName(id string) string {
	return "track-" + id
}
