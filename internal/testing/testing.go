// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mdash/internal/models"
)

// MockMusicSource is an in-memory test double for [services.MusicSource].
//
// LibraryPage slices Library by offset and limit. Calls are recorded and safe for concurrent use.
type MockMusicSource struct {
	Recent      []models.Track
	Recommended []models.Track
	Library     []models.Track
	Genres      []string

	RecentErr    error
	RecommendErr error
	GenresErr    error

	// LibraryErr is returned for pages starting at or after LibraryErrOffset.
	LibraryErr       error
	LibraryErrOffset int

	// SearchFn answers CatalogSearch; nil returns no results.
	SearchFn func(ctx context.Context, term string, limit int) ([]models.Track, error)

	mu             sync.Mutex
	libraryOffsets []int
	searchTerms    []string
}

func (m *MockMusicSource) RecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	if m.RecentErr != nil {
		return nil, m.RecentErr
	}
	return head(m.Recent, limit), nil
}

func (m *MockMusicSource) Recommendations(ctx context.Context, limit int) ([]models.Track, error) {
	if m.RecommendErr != nil {
		return nil, m.RecommendErr
	}
	return head(m.Recommended, limit), nil
}

func (m *MockMusicSource) LibraryPage(ctx context.Context, limit, offset int, recentFirst bool) ([]models.Track, error) {
	m.mu.Lock()
	m.libraryOffsets = append(m.libraryOffsets, offset)
	m.mu.Unlock()

	if m.LibraryErr != nil && offset >= m.LibraryErrOffset {
		return nil, m.LibraryErr
	}
	if offset >= len(m.Library) {
		return []models.Track{}, nil
	}
	return head(m.Library[offset:], limit), nil
}

func (m *MockMusicSource) CatalogSearch(ctx context.Context, term string, limit int) ([]models.Track, error) {
	m.mu.Lock()
	m.searchTerms = append(m.searchTerms, term)
	m.mu.Unlock()

	if m.SearchFn == nil {
		return []models.Track{}, nil
	}
	return m.SearchFn(ctx, term, limit)
}

func (m *MockMusicSource) AvailableGenres(ctx context.Context) ([]string, error) {
	if m.GenresErr != nil {
		return nil, m.GenresErr
	}
	return m.Genres, nil
}

func (m *MockMusicSource) Name() string { return "mock" }

// LibraryOffsets returns the offsets requested from LibraryPage, in call order.
func (m *MockMusicSource) LibraryOffsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.libraryOffsets...)
}

// SearchTerms returns the terms passed to CatalogSearch, in call order.
func (m *MockMusicSource) SearchTerms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searchTerms...)
}

func head(tracks []models.Track, limit int) []models.Track {
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return append([]models.Track(nil), tracks...)
}

// MockNewsSource is a test double for [services.NewsSource].
type MockNewsSource struct {
	SourceName string
	Items      []models.NewsArticle
	Err        error
	// Delay holds the call open, to exercise concurrent branches.
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

func (m *MockNewsSource) Articles(ctx context.Context, genre, searchTerm string) ([]models.NewsArticle, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]models.NewsArticle(nil), m.Items...), nil
}

func (m *MockNewsSource) Name() string {
	if m.SourceName == "" {
		return "mock-news"
	}
	return m.SourceName
}

// Calls returns how many times Articles was called.
func (m *MockNewsSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRecordStore is an in-memory record store. Err fails every operation when set.
type MockRecordStore struct {
	Err error

	mu       sync.Mutex
	counts   map[string]int
	played   map[string]time.Time
	sessions []models.ListeningSession
}

// NewMockRecordStore creates a store seeded with play counts keyed by track id.
func NewMockRecordStore(counts map[string]int, sessions ...models.ListeningSession) *MockRecordStore {
	m := &MockRecordStore{counts: map[string]int{}, played: map[string]time.Time{}, sessions: sessions}
	for k, v := range counts {
		m.counts[k] = v
	}
	return m
}

func (m *MockRecordStore) PlayCount(ctx context.Context, trackID string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[trackID], nil
}

func (m *MockRecordStore) AllPlayCounts(ctx context.Context) (map[string]int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

func (m *MockRecordStore) LastPlayed(ctx context.Context) (map[string]time.Time, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.played))
	for k, v := range m.played {
		out[k] = v
	}
	return out, nil
}

// SetLastPlayed seeds the last play time for a track.
func (m *MockRecordStore) SetLastPlayed(trackID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.played == nil {
		m.played = map[string]time.Time{}
	}
	m.played[trackID] = at
}

func (m *MockRecordStore) IncrementPlayCount(ctx context.Context, track models.Track) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[track.ID]++
	return m.counts[track.ID], nil
}

func (m *MockRecordStore) SaveSession(ctx context.Context, session models.ListeningSession) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *MockRecordStore) SessionsSince(ctx context.Context, since time.Time) ([]models.ListeningSession, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ListeningSession
	for _, s := range m.sessions {
		if !s.StartTime.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Sessions returns every stored session.
func (m *MockRecordStore) Sessions() []models.ListeningSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ListeningSession(nil), m.sessions...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
