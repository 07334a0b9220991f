// Package models defines the value types shared by the aggregation core, the collaborator clients and the record stores.
//
// The package contains three groups of types:
//
// 1. Catalog values produced by the music source
//   - [Track] : Immutable song value, identified by its ID
//   - [Playlist] : Generated or weekly playlist with an optional [PlaylistSchedule]
//
// 2. Derived statistics, recomputed on every request and never persisted
//   - [StreamingStats] : Aggregate root returned to the dashboard
//   - [ArtistStats], [TrackStats], [WeeklyStats] : Rollups over the fetched sample
//   - [ListeningSession] : Either stored by a record store or synthesized client-side
//
// 3. News values produced by the news sources
//   - [NewsArticle] : Article from the keyword API or the scraped fallback
//
// Listening time is always an estimate of [MinutesPerPlay] minutes per play.
package models
