// Package server exposes the dashboard aggregation core over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [MuxRouter] implementation uses gorilla/mux internally with method filtering. Unmatched paths and methods
// answer with a JSON error body.
//
// # Middleware
//
//   - [Recover] turns handler panics into 500 responses
//   - [Logging] writes one line per request through charmbracelet/log
//   - [Metrics] counts requests and observes durations labelled by the matched route template
//
// # Endpoints
//
// [API] mounts the following routes:
//
//	GET  /api/stats              streaming statistics (401 when music access is not authorized)
//	GET  /api/news?genre=&q=     merged news articles and per-source errors
//	GET  /api/genres             catalog and news genres
//	POST /api/playlists/generate seed-based playlist
//	GET  /api/playlists/weekly   weekly recommendations mix
//	POST /api/plays              record one play of a track
//	GET  /api/plays/{id}         stored play count of a track
//	GET  /healthz
//	GET  /metrics                Prometheus exposition
//
// Concurrent stats requests share a last-started-wins slot. A request whose run was overtaken answers with the newer
// run's result and sets the X-Mdash-Fresh header to false.
//
// Requests whose client goes away before a response is ready answer 499.
package server
