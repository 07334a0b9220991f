package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

// SQLiteStore implements [Store] over [TrackRecordRepository] and [SessionRepository].
type SQLiteStore struct {
	db       *sql.DB
	tracks   *TrackRecordRepository
	sessions *SessionRepository
	now      func() time.Time
}

// NewSQLiteStore creates a store on a migrated database
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:       db,
		tracks:   NewTrackRecordRepository(db),
		sessions: NewSessionRepository(db),
		now:      time.Now,
	}
}

// PlayCount returns the stored count for a track, or zero when there is no record.
func (s *SQLiteStore) PlayCount(ctx context.Context, trackID string) (int, error) {
	record, err := s.tracks.Get(ctx, trackID)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.PlayCount, nil
}

// AllPlayCounts returns every stored count keyed by track id.
func (s *SQLiteStore) AllPlayCounts(ctx context.Context) (map[string]int, error) {
	records, err := s.tracks.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(records))
	for _, r := range records {
		counts[r.Track.ID] = r.PlayCount
	}
	return counts, nil
}

// LastPlayed returns the time of the most recent play keyed by track id. Records never played are omitted.
func (s *SQLiteStore) LastPlayed(ctx context.Context) (map[string]time.Time, error) {
	records, err := s.tracks.List(ctx)
	if err != nil {
		return nil, err
	}

	played := make(map[string]time.Time, len(records))
	for _, r := range records {
		if r.LastPlayed != nil {
			played[r.Track.ID] = *r.LastPlayed
		}
	}
	return played, nil
}

func (s *SQLiteStore) IncrementPlayCount(ctx context.Context, track models.Track) (int, error) {
	return s.tracks.Increment(ctx, track, s.now())
}

func (s *SQLiteStore) SaveSession(ctx context.Context, session models.ListeningSession) error {
	return s.sessions.Create(ctx, &session)
}

// SessionsSince returns sessions started at or after since, newest first.
func (s *SQLiteStore) SessionsSince(ctx context.Context, since time.Time) ([]models.ListeningSession, error) {
	return s.sessions.ListSince(ctx, since, 0)
}

// Prune removes sessions older than cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.sessions.DeleteBefore(ctx, cutoff)
}

// Reset deletes the play record for a track. Returns [shared.ErrNotFound] when there is none.
func (s *SQLiteStore) Reset(ctx context.Context, trackID string) error {
	return s.tracks.Delete(ctx, trackID)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
