// package services defines the collaborator interfaces consumed by the aggregation core
//
// Apple Music, NewsAPI, NME (via scrape)
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

// MusicSource defines the music provider (Apple Music) that supplies listening data and catalog search.
type MusicSource interface {
	// RecentlyPlayed returns up to limit of the user's most recently played songs, newest first.
	RecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error)

	// Recommendations returns up to limit songs from the user's personal recommendations.
	Recommendations(ctx context.Context, limit int) ([]models.Track, error)

	// LibraryPage returns one page of songs saved in the user's library.
	// When recentFirst is set the page is ordered by date added, newest first.
	LibraryPage(ctx context.Context, limit, offset int, recentFirst bool) ([]models.Track, error)

	// CatalogSearch searches the full catalog (not just the user's library) for songs.
	CatalogSearch(ctx context.Context, term string, limit int) ([]models.Track, error)

	// AvailableGenres returns the catalog's genre names, distinct and sorted.
	AvailableGenres(ctx context.Context) ([]string, error)

	// Name returns the name of the service (e.g., "Apple Music")
	Name() string
}

// NewsSource defines a provider of music news articles.
type NewsSource interface {
	// Articles returns articles matching the optional genre and search term.
	Articles(ctx context.Context, genre, searchTerm string) ([]models.NewsArticle, error)

	// Name returns the name of the source (e.g., "NewsAPI", "NME")
	Name() string
}

// checkResponse maps a non-2xx response to the shared error taxonomy.
//
// Only 429 is special; every other status becomes an [*shared.APIError]. Sources that treat
// 401 and 403 as an authorization failure check for them before calling this.
// The body is consumed on error; message extracts an optional human readable message from it.
func checkResponse(source string, resp *http.Response, message func([]byte) string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusTooManyRequests {
		return &shared.RateLimitError{Source: source, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	apiErr := &shared.APIError{Source: source, StatusCode: resp.StatusCode}
	if message != nil {
		apiErr.Message = message(body)
	}
	return apiErr
}

// parseRetryAfter reads a Retry-After header given either as seconds or as an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// decodeJSON decodes the response body into result.
func decodeJSON(r io.Reader, result any) error {
	if err := json.NewDecoder(r).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrInvalidResponse, err)
	}
	return nil
}
