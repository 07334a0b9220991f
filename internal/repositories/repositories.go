// package repositories provides record store implementations for play counts and listening sessions.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Store is a record store for per-track play counters and listening sessions.
//
// A missing record reads as zero or empty, never as an error.
type Store interface {
	PlayCount(ctx context.Context, trackID string) (int, error)
	AllPlayCounts(ctx context.Context) (map[string]int, error)
	LastPlayed(ctx context.Context) (map[string]time.Time, error)
	IncrementPlayCount(ctx context.Context, track models.Track) (int, error)
	SaveSession(ctx context.Context, session models.ListeningSession) error
	SessionsSince(ctx context.Context, since time.Time) ([]models.ListeningSession, error)
	Close() error
}

// Open builds the record store selected by the [store] config section.
func Open(ctx context.Context, cfg *shared.Config) (Store, error) {
	switch cfg.Store.Driver {
	case DriverSQLite, "":
		db, err := shared.OpenMigrated(cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	case DriverRedis:
		return OpenRedisStore(ctx, cfg.Store)
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", shared.ErrInvalidConfig, cfg.Store.Driver)
	}
}
