// Package repositories implements the record store behind authoritative play counts and listening history.
//
// Two backends implement [Store]:
//   - [SQLiteStore] : default, on embedded migrations; built from [TrackRecordRepository] and [SessionRepository]
//   - [RedisStore] : hashes per track record, JSON sessions indexed by a sorted set on start time
//
// Records are keyed by record name ("track-{id}" for play counters, the session id for sessions).
// Absence of a record reads as zero or empty; only genuine backend failures are returned as errors.
package repositories
