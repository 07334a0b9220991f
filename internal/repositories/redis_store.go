package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	trackIndexKey   = "tracks"
	sessionIndexKey = "sessions"
	sessionKeyFmt   = "session:%s"
	playCountField  = "playCount"
	lastPlayedField = "lastPlayed"
)

// RedisStore implements [Store] on Redis.
//
// Each track record is a hash under "track-{id}" whose playCount field is incremented atomically; known track ids
// are kept in a set. Sessions are stored as JSON under "session:{id}" and indexed by a sorted set scored by start
// time in milliseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps an existing client. prefix namespaces every key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// OpenRedisStore connects to the configured Redis server and verifies it answers.
func OpenRedisStore(ctx context.Context, cfg shared.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to connect to redis at %s: %v", shared.ErrServiceUnavailable, cfg.RedisAddr, err)
	}

	return NewRedisStore(client, ""), nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) sessionKey(id string) string {
	return s.key(fmt.Sprintf(sessionKeyFmt, id))
}

func (s *RedisStore) PlayCount(ctx context.Context, trackID string) (int, error) {
	n, err := s.client.HGet(ctx, s.key(models.TrackRecordName(trackID)), playCountField).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get play count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) AllPlayCounts(ctx context.Context) (map[string]int, error) {
	ids, err := s.client.SMembers(ctx, s.key(trackIndexKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.key(models.TrackRecordName(id)), playCountField)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get play counts: %w", err)
	}

	counts := make(map[string]int, len(ids))
	for i, id := range ids {
		n, err := cmds[i].Int()
		if err != nil {
			continue
		}
		counts[id] = n
	}
	return counts, nil
}

// LastPlayed returns the time of the most recent play keyed by track id. Unparseable values are skipped.
func (s *RedisStore) LastPlayed(ctx context.Context) (map[string]time.Time, error) {
	ids, err := s.client.SMembers(ctx, s.key(trackIndexKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.key(models.TrackRecordName(id)), lastPlayedField)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get last played: %w", err)
	}

	played := make(map[string]time.Time, len(ids))
	for i, id := range ids {
		at, err := time.Parse(time.RFC3339, cmds[i].Val())
		if err != nil {
			continue
		}
		played[id] = at
	}
	return played, nil
}

// IncrementPlayCount refreshes the track's metadata and increments its counter in one transaction.
func (s *RedisStore) IncrementPlayCount(ctx context.Context, track models.Track) (int, error) {
	if track.ID == "" {
		return 0, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	key := s.key(track.RecordName())
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"trackId", track.ID,
			"title", track.Title,
			"artist", track.Artist,
			"albumTitle", track.AlbumTitle,
			"artworkURL", track.ArtworkURL,
			lastPlayedField, s.now().UTC().Format(time.RFC3339),
		)
		incr = pipe.HIncrBy(ctx, key, playCountField, 1)
		pipe.SAdd(ctx, s.key(trackIndexKey), track.ID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment play count: %w", err)
	}

	return int(incr.Val()), nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session models.ListeningSession) error {
	if session.ID == "" {
		session.ID = shared.GenerateID()
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, 0)
		pipe.ZAdd(ctx, s.key(sessionIndexKey), redis.Z{
			Score:  float64(session.StartTime.UnixMilli()),
			Member: session.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SessionsSince returns sessions started at or after since, newest first. Index entries whose payload is gone are skipped.
func (s *RedisStore) SessionsSince(ctx context.Context, since time.Time) ([]models.ListeningSession, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, s.key(sessionIndexKey), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	sessions := make([]models.ListeningSession, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var session models.ListeningSession
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("%w: failed to decode session: %v", shared.ErrInvalidResponse, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
