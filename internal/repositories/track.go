package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

// TrackRecord is the persisted play counter for a track, keyed by its record name "track-{id}".
type TrackRecord struct {
	RecordName string
	Track      models.Track
	PlayCount  int
	LastPlayed *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TrackRecordRepository persists [TrackRecord] rows in SQLite.
type TrackRecordRepository struct {
	db *sql.DB
}

// NewTrackRecordRepository creates a new TrackRecordRepository with the given database connection
func NewTrackRecordRepository(db *sql.DB) *TrackRecordRepository {
	return &TrackRecordRepository{db: db}
}

// Increment adds one play for track, creating the record with a count of one when absent.
// Track metadata is refreshed on every play. Returns the new count.
func (r *TrackRecordRepository) Increment(ctx context.Context, track models.Track, playedAt time.Time) (int, error) {
	if track.ID == "" {
		return 0, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	playedAt = playedAt.UTC()
	query := `
		INSERT INTO track_records (record_name, track_id, title, artist, album_title, artwork_url, play_count, last_played, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(record_name) DO UPDATE SET
			play_count = play_count + 1,
			title = excluded.title,
			artist = excluded.artist,
			album_title = excluded.album_title,
			artwork_url = excluded.artwork_url,
			last_played = excluded.last_played,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		track.RecordName(),
		track.ID,
		track.Title,
		track.Artist,
		track.AlbumTitle,
		track.ArtworkURL,
		playedAt,
		playedAt,
		playedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert track record: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT play_count FROM track_records WHERE record_name = ?", track.RecordName()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read play count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit play count: %w", err)
	}

	return count, nil
}

// Get retrieves a record by track id. Returns [shared.ErrNotFound] when absent.
func (r *TrackRecordRepository) Get(ctx context.Context, trackID string) (*TrackRecord, error) {
	query := `
		SELECT record_name, track_id, title, artist, album_title, artwork_url, play_count, last_played, created_at, updated_at
		FROM track_records
		WHERE record_name = ?
	`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, models.TrackRecordName(trackID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, models.TrackRecordName(trackID))
	}
	return record, err
}

// List retrieves every record, most played first
func (r *TrackRecordRepository) List(ctx context.Context) ([]*TrackRecord, error) {
	query := `
		SELECT record_name, track_id, title, artist, album_title, artwork_url, play_count, last_played, created_at, updated_at
		FROM track_records
		ORDER BY play_count DESC, record_name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query track records: %w", err)
	}
	defer rows.Close()

	var records []*TrackRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Delete removes the record for a track id
func (r *TrackRecordRepository) Delete(ctx context.Context, trackID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM track_records WHERE record_name = ?", models.TrackRecordName(trackID))
	if err != nil {
		return fmt.Errorf("failed to delete track record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, models.TrackRecordName(trackID))
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a [TrackRecord]
func scanRecord(row scanner) (*TrackRecord, error) {
	var (
		record     TrackRecord
		lastPlayed sql.NullTime
	)

	err := row.Scan(
		&record.RecordName,
		&record.Track.ID,
		&record.Track.Title,
		&record.Track.Artist,
		&record.Track.AlbumTitle,
		&record.Track.ArtworkURL,
		&record.PlayCount,
		&lastPlayed,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track record: %w", err)
	}

	if lastPlayed.Valid {
		record.LastPlayed = &lastPlayed.Time
	}

	return &record, nil
}
