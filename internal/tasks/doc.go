// Package tasks is the aggregation core behind the music dashboard.
//
// # Core Operations
//
//  1. [StatsEngine.StreamingStats] : Listening statistics
//     - Fetches recently played and recommended tracks concurrently
//     - Pages the library sequentially until the sample reaches 100 tracks or a short page
//     - Rolls the sample up with [Aggregate] and builds stats with [Assembler.Assemble]
//     - Overrides local tallies with authoritative play counts from a [RecordStore]
//
//  2. [NewsAggregator.GetMusicNews] : Music news
//     - Queries every news source in parallel
//     - Merges the results newest first without de-duplication
//
//  3. [PlaylistGenerator.Generate] : Seeded playlists
//     - Searches the catalog once per seed track, spaced by a rate limiter
//     - Tops up from a genre search, shuffles and truncates
//
// # Partial Failure
//
// Every fan-out branch is isolated. A failing branch is logged, counted and replaced by an empty
// result; only an authorization failure against the music source fails a stats request.
// News never fails: per-source errors are returned next to the articles.
//
// # Progress Reporting
//
// Long-running operations accept an optional channel of [ProgressUpdate]. Updates are sent with
// select and default, so a slow or absent reader never blocks aggregation.
//
// # Refresh Ordering
//
// [Latest] implements last-started-wins: a result is kept only if no newer run began before it finished.
package tasks
