package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/redis/go-redis/v9"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func setupRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test:"), mr
}

var (
	trackA = models.Track{ID: "a", Title: "Song A", Artist: "Artist", AlbumTitle: "Album", ArtworkURL: "https://img/{w}x{h}"}
	trackB = models.Track{ID: "b", Title: "Song B", Artist: "Other"}
)

// testStoreContract exercises the behavior every [Store] must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("missing record reads as zero", func(t *testing.T) {
		store := newStore(t)

		n, err := store.PlayCount(ctx, "missing")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}

		counts, err := store.AllPlayCounts(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(counts) != 0 {
			t.Errorf("expected no counts, got %v", counts)
		}

		played, err := store.LastPlayed(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(played) != 0 {
			t.Errorf("expected no last played times, got %v", played)
		}
	})

	t.Run("LastPlayed follows the latest play", func(t *testing.T) {
		store := newStore(t)

		if _, err := store.IncrementPlayCount(ctx, trackA); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		after := time.Now().Add(-time.Second)
		if _, err := store.IncrementPlayCount(ctx, trackA); err != nil {
			t.Fatalf("increment failed: %v", err)
		}

		played, err := store.LastPlayed(ctx)
		if err != nil {
			t.Fatalf("LastPlayed failed: %v", err)
		}
		at, ok := played["a"]
		if !ok || at.Before(after.Truncate(time.Second)) {
			t.Errorf("expected a recent last played time for a, got %v", played)
		}
		if _, ok := played["b"]; ok {
			t.Error("expected no entry for a track never played")
		}
	})

	t.Run("IncrementPlayCount", func(t *testing.T) {
		store := newStore(t)

		for want := 1; want <= 3; want++ {
			got, err := store.IncrementPlayCount(ctx, trackA)
			if err != nil {
				t.Fatalf("increment failed: %v", err)
			}
			if got != want {
				t.Errorf("expected count %d, got %d", want, got)
			}
		}
		if _, err := store.IncrementPlayCount(ctx, trackB); err != nil {
			t.Fatalf("increment failed: %v", err)
		}

		n, _ := store.PlayCount(ctx, "a")
		if n != 3 {
			t.Errorf("expected 3 plays for a, got %d", n)
		}

		counts, err := store.AllPlayCounts(ctx)
		if err != nil {
			t.Fatalf("AllPlayCounts failed: %v", err)
		}
		if counts["a"] != 3 || counts["b"] != 1 || len(counts) != 2 {
			t.Errorf("unexpected counts %v", counts)
		}
	})

	t.Run("IncrementPlayCount requires id", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.IncrementPlayCount(ctx, models.Track{Title: "No ID"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("sessions", func(t *testing.T) {
		store := newStore(t)
		now := time.Now().UTC().Truncate(time.Millisecond)

		sessions := []models.ListeningSession{
			{ID: "old", StartTime: now.Add(-10 * 24 * time.Hour), DurationMinutes: 3, Tracks: []models.Track{trackA}},
			{ID: "recent", StartTime: now.Add(-2 * time.Hour), DurationMinutes: 6, Tracks: []models.Track{trackA, trackB}},
			{ID: "newest", StartTime: now.Add(-time.Hour), DurationMinutes: 3, Tracks: []models.Track{trackB}},
		}
		for _, s := range sessions {
			if err := store.SaveSession(ctx, s); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}
		}

		got, err := store.SessionsSince(ctx, now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("SessionsSince failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 sessions in window, got %d", len(got))
		}
		if got[0].ID != "newest" || got[1].ID != "recent" {
			t.Errorf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
		}
		if !got[1].StartTime.Equal(sessions[1].StartTime) {
			t.Errorf("start time mismatch: %s vs %s", got[1].StartTime, sessions[1].StartTime)
		}
		if got[1].DurationMinutes != 6 || len(got[1].Tracks) != 2 {
			t.Errorf("unexpected session %+v", got[1])
		}
		if !reflect.DeepEqual(got[1].Tracks[0], models.Track{ID: "a", Title: "Song A", Artist: "Artist", AlbumTitle: "Album", ArtworkURL: "https://img/{w}x{h}"}) {
			t.Errorf("track metadata not preserved: %+v", got[1].Tracks[0])
		}
		if got[1].Tracks[1].ID != "b" {
			t.Errorf("track order not preserved: %+v", got[1].Tracks)
		}
	})

	t.Run("no sessions", func(t *testing.T) {
		store := newStore(t)
		got, err := store.SessionsSince(ctx, time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no sessions, got %v", got)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		store := NewSQLiteStore(setupTestDB(t))
		t.Cleanup(func() { store.Close() })
		return store
	})

	t.Run("Prune", func(t *testing.T) {
		ctx := context.Background()
		store := NewSQLiteStore(setupTestDB(t))
		defer store.Close()

		now := time.Now().UTC()
		store.SaveSession(ctx, models.ListeningSession{ID: "old", StartTime: now.Add(-30 * 24 * time.Hour), Tracks: []models.Track{trackA}})
		store.SaveSession(ctx, models.ListeningSession{ID: "new", StartTime: now})

		n, err := store.Prune(ctx, now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 pruned, got %d", n)
		}

		got, _ := store.SessionsSince(ctx, time.Time{})
		if len(got) != 1 || got[0].ID != "new" {
			t.Errorf("unexpected remaining sessions %+v", got)
		}

		var orphans int
		store.db.QueryRow("SELECT COUNT(*) FROM session_tracks WHERE session_id = 'old'").Scan(&orphans)
		if orphans != 0 {
			t.Errorf("expected pruned session tracks to be removed, %d left", orphans)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		ctx := context.Background()
		store := NewSQLiteStore(setupTestDB(t))
		defer store.Close()

		store.IncrementPlayCount(ctx, trackA)
		store.IncrementPlayCount(ctx, trackA)

		if err := store.Reset(ctx, "a"); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if n, _ := store.PlayCount(ctx, "a"); n != 0 {
			t.Errorf("expected count 0 after reset, got %d", n)
		}
		if err := store.Reset(ctx, "a"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for a missing record, got %v", err)
		}
	})
}

func TestRedisStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		store, _ := setupRedis(t)
		return store
	})

	t.Run("key layout", func(t *testing.T) {
		ctx := context.Background()
		store, mr := setupRedis(t)
		played := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return played }

		if _, err := store.IncrementPlayCount(ctx, trackA); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got := mr.HGet("test:track-a", "playCount"); got != "1" {
			t.Errorf("expected playCount 1 in hash, got %q", got)
		}
		if got := mr.HGet("test:track-a", "title"); got != "Song A" {
			t.Errorf("expected title in hash, got %q", got)
		}
		if got := mr.HGet("test:track-a", "lastPlayed"); got != store.now().UTC().Format(time.RFC3339) {
			t.Errorf("expected RFC 3339 lastPlayed in hash, got %q", got)
		}
		if ok, _ := mr.SIsMember("test:tracks", "a"); !ok {
			t.Error("expected track id in index set")
		}

		if err := store.SaveSession(ctx, models.ListeningSession{StartTime: time.Now()}); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
		members, err := mr.ZMembers("test:sessions")
		if err != nil || len(members) != 1 {
			t.Errorf("expected one indexed session, got %v (%v)", members, err)
		}
	})

	t.Run("dangling index entries are skipped", func(t *testing.T) {
		ctx := context.Background()
		store, mr := setupRedis(t)

		store.SaveSession(ctx, models.ListeningSession{ID: "kept", StartTime: time.Now()})
		store.SaveSession(ctx, models.ListeningSession{ID: "gone", StartTime: time.Now()})
		mr.Del("test:session:gone")

		got, err := store.SessionsSince(ctx, time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].ID != "kept" {
			t.Errorf("unexpected sessions %+v", got)
		}
	})

	t.Run("unavailable server", func(t *testing.T) {
		store, mr := setupRedis(t)
		mr.Close()

		if _, err := store.PlayCount(context.Background(), "a"); err == nil {
			t.Error("expected error when redis is down")
		}
	})
}

func TestTrackRecordRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRecordRepository(db)
		played := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		if _, err := repo.Increment(ctx, trackA, played); err != nil {
			t.Fatalf("increment failed: %v", err)
		}

		record, err := repo.Get(ctx, "a")
		if err != nil {
			t.Fatalf("failed to get record: %v", err)
		}
		if record.RecordName != "track-a" {
			t.Errorf("expected record name track-a, got %s", record.RecordName)
		}
		if record.LastPlayed == nil || !record.LastPlayed.Equal(played) {
			t.Errorf("expected last played %s, got %v", played, record.LastPlayed)
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewTrackRecordRepository(db).Get(ctx, "nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Increment refreshes metadata", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRecordRepository(db)
		repo.Increment(ctx, trackA, time.Now())
		renamed := trackA
		renamed.Title = "Song A (Remastered)"
		repo.Increment(ctx, renamed, time.Now())

		record, _ := repo.Get(ctx, "a")
		if record.Track.Title != "Song A (Remastered)" || record.PlayCount != 2 {
			t.Errorf("unexpected record %+v", record)
		}
	})

	t.Run("List orders by play count", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRecordRepository(db)
		repo.Increment(ctx, trackB, time.Now())
		repo.Increment(ctx, trackA, time.Now())
		repo.Increment(ctx, trackA, time.Now())

		records, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 2 || records[0].Track.ID != "a" {
			t.Errorf("expected a first, got %+v", records)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRecordRepository(db)
		repo.Increment(ctx, trackA, time.Now())

		if err := repo.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := repo.Delete(ctx, "a"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create generates id", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		session := &models.ListeningSession{StartTime: time.Now(), DurationMinutes: 3, Tracks: []models.Track{trackA}}
		if err := repo.Create(ctx, session); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if session.ID == "" {
			t.Error("expected generated id")
		}

		got, err := repo.ListSince(ctx, session.StartTime.Add(-time.Minute), 0)
		if err != nil {
			t.Fatalf("ListSince failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != session.ID || len(got[0].Tracks) != 1 || got[0].Tracks[0].ID != "a" {
			t.Errorf("unexpected sessions %+v", got)
		}
	})

	t.Run("Create requires start time", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewSessionRepository(db).Create(ctx, &models.ListeningSession{ID: "x"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		repo.Create(ctx, &models.ListeningSession{ID: "dup", StartTime: time.Now()})
		if err := repo.Create(ctx, &models.ListeningSession{ID: "dup", StartTime: time.Now()}); err == nil {
			t.Error("expected error for duplicate session id")
		}
	})

	t.Run("ListSince limit", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		now := time.Now()
		for i := range 5 {
			repo.Create(ctx, &models.ListeningSession{StartTime: now.Add(-time.Duration(i) * time.Hour)})
		}

		got, err := repo.ListSince(ctx, now.Add(-24*time.Hour), 3)
		if err != nil {
			t.Fatalf("ListSince failed: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 sessions, got %d", len(got))
		}
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Database.Path = filepath.Join(t.TempDir(), "mdash.db")

		store, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer store.Close()

		if _, ok := store.(*SQLiteStore); !ok {
			t.Errorf("expected SQLiteStore, got %T", store)
		}
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := shared.DefaultConfig()
		cfg.Store.Driver = DriverRedis
		cfg.Store.RedisAddr = mr.Addr()

		store, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer store.Close()

		if _, ok := store.(*RedisStore); !ok {
			t.Errorf("expected RedisStore, got %T", store)
		}
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := shared.DefaultConfig()
		cfg.Store.Driver = DriverRedis
		cfg.Store.RedisAddr = addr

		if _, err := Open(ctx, cfg); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Store.Driver = "cassandra"

		if _, err := Open(ctx, cfg); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
