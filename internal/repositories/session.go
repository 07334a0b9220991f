package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

// SessionRepository persists [models.ListeningSession] values and their ordered tracks in SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session and its tracks in one transaction. A missing id is generated.
func (r *SessionRepository) Create(ctx context.Context, session *models.ListeningSession) error {
	if session.ID == "" {
		session.ID = shared.GenerateID()
	}
	if session.StartTime.IsZero() {
		return fmt.Errorf("%w: session start time is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO listening_sessions (id, start_time, duration_minutes, created_at) VALUES (?, ?, ?, ?)",
		session.ID, session.StartTime.UTC(), session.DurationMinutes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for i, t := range session.Tracks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_tracks (session_id, position, track_id, title, artist, album_title, artwork_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, session.ID, i, t.ID, t.Title, t.Artist, t.AlbumTitle, t.ArtworkURL)
		if err != nil {
			return fmt.Errorf("failed to insert session track: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	return nil
}

// ListSince retrieves sessions starting at or after since, newest first. A limit of zero means no limit.
func (r *SessionRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.ListeningSession, error) {
	query := `
		SELECT id, start_time, duration_minutes
		FROM listening_sessions
		WHERE start_time >= ?
		ORDER BY start_time DESC
	`
	args := []any{since.UTC()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var (
		sessions []models.ListeningSession
		ids      []string
	)
	for rows.Next() {
		var s models.ListeningSession
		if err := rows.Scan(&s.ID, &s.StartTime, &s.DurationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	tracks, err := r.tracks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Tracks = tracks[sessions[i].ID]
	}

	return sessions, nil
}

// DeleteBefore removes sessions that started before cutoff and returns how many were removed.
// Their tracks go with them through the session_tracks foreign key.
func (r *SessionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM listening_sessions WHERE start_time < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// tracks loads session tracks for the given sessions, keyed by session id and ordered by position.
func (r *SessionRepository) tracks(ctx context.Context, sessionIDs []string) (map[string][]models.Track, error) {
	out := make(map[string][]models.Track, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}

	stmt, err := r.db.PrepareContext(ctx, `
		SELECT track_id, title, artist, album_title, artwork_url
		FROM session_tracks
		WHERE session_id = ?
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session track query: %w", err)
	}
	defer stmt.Close()

	for _, id := range sessionIDs {
		rows, err := stmt.QueryContext(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to query session tracks: %w", err)
		}

		tracks := []models.Track{}
		for rows.Next() {
			var t models.Track
			if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.AlbumTitle, &t.ArtworkURL); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan session track: %w", err)
			}
			tracks = append(tracks, t)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		out[id] = tracks
	}

	return out, nil
}
