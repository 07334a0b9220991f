// Apple Music API implementation of [MusicSource]
//
// Response types based on https://developer.apple.com/documentation/applemusicapi
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/metrics"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
	"golang.org/x/oauth2"
)

const (
	appleMusicBaseURL     = "https://api.music.apple.com/v1"
	appleMusicSource      = "apple_music"
	musicUserTokenHeader  = "Music-User-Token"
	defaultStorefront     = "us"
	maxAppleMusicPageSize = 100
)

// AppleArtwork is an artwork resource whose URL carries {w}x{h} placeholders.
type AppleArtwork struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AppleSongAttributes are the attributes shared by catalog songs and library songs.
type AppleSongAttributes struct {
	Name             string       `json:"name"`
	ArtistName       string       `json:"artistName"`
	AlbumName        string       `json:"albumName"`
	GenreNames       []string     `json:"genreNames"`
	Artwork          AppleArtwork `json:"artwork"`
	DurationInMillis int          `json:"durationInMillis"`
	ISRC             string       `json:"isrc"`
}

// AppleResource is a single resource object. Only "songs" and "library-songs" are converted to tracks.
type AppleResource struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Attributes AppleSongAttributes `json:"attributes"`
}

// AppleResourceList is the paginated response envelope for resource collections.
type AppleResourceList struct {
	Data []AppleResource `json:"data"`
	Next string          `json:"next,omitempty"`
}

type recommendationContents struct {
	Data []AppleResource `json:"data"`
}

type recommendationRelationships struct {
	Contents recommendationContents `json:"contents"`
}

// AppleRecommendation is a personal recommendation whose contents hold albums, playlists or songs.
type AppleRecommendation struct {
	ID            string                      `json:"id"`
	Type          string                      `json:"type"`
	Relationships recommendationRelationships `json:"relationships"`
}

type appleRecommendationList struct {
	Data []AppleRecommendation `json:"data"`
}

type appleSearchResults struct {
	Songs AppleResourceList `json:"songs"`
}

type appleSearchResponse struct {
	Results appleSearchResults `json:"results"`
}

type genreAttributes struct {
	Name string `json:"name"`
}

// AppleGenre is a catalog genre.
type AppleGenre struct {
	ID         string          `json:"id"`
	Attributes genreAttributes `json:"attributes"`
}

type appleGenreList struct {
	Data []AppleGenre `json:"data"`
}

type appleErrorBody struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// AppleMusicService implements [MusicSource] for the Apple Music API.
//
// Requests carry the developer token as a bearer token from an [oauth2.TokenSource] and the user's Music-User-Token on /me endpoints.
type AppleMusicService struct {
	baseURL    string
	storefront string
	userToken  string
	httpClient *http.Client
	logger     *log.Logger
}

// AppleMusicOption configures an [AppleMusicService].
type AppleMusicOption func(*AppleMusicService)

// WithBaseURL points the service at another API root, mostly for tests.
func WithBaseURL(baseURL string) AppleMusicOption {
	return func(s *AppleMusicService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithStorefront sets the catalog storefront (e.g. "us", "gb").
func WithStorefront(storefront string) AppleMusicOption {
	return func(s *AppleMusicService) {
		if storefront != "" {
			s.storefront = storefront
		}
	}
}

// WithUserToken sets the Music-User-Token sent on personalized endpoints.
func WithUserToken(token string) AppleMusicOption {
	return func(s *AppleMusicService) {
		s.userToken = token
	}
}

// WithHTTPClient replaces the transport used underneath the token source.
func WithHTTPClient(client *http.Client) AppleMusicOption {
	return func(s *AppleMusicService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) AppleMusicOption {
	return func(s *AppleMusicService) {
		s.logger = logger
	}
}

// NewAppleMusicService creates an Apple Music client that authenticates every request with tokens from ts.
func NewAppleMusicService(ts oauth2.TokenSource, opts ...AppleMusicOption) (*AppleMusicService, error) {
	if ts == nil {
		return nil, fmt.Errorf("%w: developer token source is required", shared.ErrMissingCredentials)
	}

	s := &AppleMusicService{
		baseURL:    appleMusicBaseURL,
		storefront: defaultStorefront,
		httpClient: http.DefaultClient,
		logger:     shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	base := s.httpClient
	s.httpClient = &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Timeout:   base.Timeout,
	}
	return s, nil
}

// NewAppleMusicServiceFromConfig builds the service from the apple_music credentials section.
func NewAppleMusicServiceFromConfig(cfg shared.AppleMusicConfig, logger *log.Logger, opts ...AppleMusicOption) (*AppleMusicService, error) {
	ts, err := NewDeveloperTokenSource(cfg, func(token *oauth2.Token) {
		if logger != nil {
			logger.Debug("developer token refreshed", "expiry", token.Expiry)
		}
	})
	if err != nil {
		return nil, err
	}

	base := []AppleMusicOption{WithStorefront(cfg.Storefront), WithUserToken(cfg.UserToken)}
	if cfg.BaseURL != "" {
		base = append(base, WithBaseURL(cfg.BaseURL))
	}
	if logger != nil {
		base = append(base, WithLogger(logger))
	}
	return NewAppleMusicService(ts, append(base, opts...)...)
}

func (s *AppleMusicService) Name() string {
	return "Apple Music"
}

// Storefront returns the catalog storefront in use.
func (s *AppleMusicService) Storefront() string {
	return s.storefront
}

// Client returns the authenticated HTTP client, for raw API access.
func (s *AppleMusicService) Client() *http.Client {
	return s.httpClient
}

// BaseURL returns the API root.
func (s *AppleMusicService) BaseURL() string {
	return s.baseURL
}

// doRequest performs an authenticated GET against the Apple Music API and decodes the JSON response into result.
//
// personal marks /me endpoints that need the Music-User-Token.
func (s *AppleMusicService) doRequest(ctx context.Context, endpoint string, personal bool, result any) error {
	if personal && s.userToken == "" {
		return fmt.Errorf("%w: music user token not configured", shared.ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if personal {
		req.Header.Set(musicUserTokenHeader, s.userToken)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(appleMusicSource, 0, start)
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(appleMusicSource, resp.StatusCode, start)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		s.logger.Debug("apple music request rejected", "endpoint", endpoint, "status", resp.StatusCode)
		return fmt.Errorf("%w: apple music returned status %d", shared.ErrUnauthorized, resp.StatusCode)
	}
	if err := checkResponse("apple music", resp, appleErrorMessage); err != nil {
		s.logger.Debug("apple music request failed", "endpoint", endpoint, "status", resp.StatusCode)
		return err
	}

	if result != nil {
		return decodeJSON(resp.Body, result)
	}
	return nil
}

func appleErrorMessage(body []byte) string {
	var e appleErrorBody
	if err := json.Unmarshal(body, &e); err != nil || len(e.Errors) == 0 {
		return ""
	}
	if e.Errors[0].Detail != "" {
		return e.Errors[0].Detail
	}
	return e.Errors[0].Title
}

// RecentlyPlayed retrieves the user's recently played songs.
func (s *AppleMusicService) RecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response AppleResourceList
	if err := s.doRequest(ctx, "/me/recent/played/tracks?"+q.Encode(), true, &response); err != nil {
		return nil, err
	}
	return convertResources(response.Data, limit), nil
}

// Recommendations flattens the songs contained in the user's personal recommendations.
func (s *AppleMusicService) Recommendations(ctx context.Context, limit int) ([]models.Track, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response appleRecommendationList
	if err := s.doRequest(ctx, "/me/recommendations?"+q.Encode(), true, &response); err != nil {
		return nil, err
	}

	var resources []AppleResource
	for _, rec := range response.Data {
		resources = append(resources, rec.Relationships.Contents.Data...)
	}
	return convertResources(resources, limit), nil
}

// LibraryPage retrieves one page of library songs.
func (s *AppleMusicService) LibraryPage(ctx context.Context, limit, offset int, recentFirst bool) ([]models.Track, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	q.Set("offset", strconv.Itoa(max(offset, 0)))
	if recentFirst {
		q.Set("sort", "-dateAdded")
	}

	var response AppleResourceList
	if err := s.doRequest(ctx, "/me/library/songs?"+q.Encode(), true, &response); err != nil {
		return nil, err
	}
	return convertResources(response.Data, limit), nil
}

// CatalogSearch searches the storefront catalog for songs matching term.
func (s *AppleMusicService) CatalogSearch(ctx context.Context, term string, limit int) ([]models.Track, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: empty search term", shared.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("term", term)
	q.Set("types", "songs")
	q.Set("limit", strconv.Itoa(min(clampLimit(limit), 25)))

	endpoint := fmt.Sprintf("/catalog/%s/search?%s", url.PathEscape(s.storefront), q.Encode())

	var response appleSearchResponse
	if err := s.doRequest(ctx, endpoint, false, &response); err != nil {
		return nil, err
	}
	return convertResources(response.Results.Songs.Data, limit), nil
}

// AvailableGenres lists the storefront's catalog genres.
func (s *AppleMusicService) AvailableGenres(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("/catalog/%s/genres", url.PathEscape(s.storefront))

	var response appleGenreList
	if err := s.doRequest(ctx, endpoint, false, &response); err != nil {
		return nil, err
	}

	genres := make([]string, 0, len(response.Data))
	for _, g := range response.Data {
		if name := strings.TrimSpace(g.Attributes.Name); name != "" {
			genres = append(genres, name)
		}
	}
	slices.Sort(genres)
	return slices.Compact(genres), nil
}

// ConvertResource maps a song resource to a [models.Track]. Non-song resources report false.
func ConvertResource(r AppleResource) (models.Track, bool) {
	switch r.Type {
	case "songs", "library-songs", "":
	default:
		return models.Track{}, false
	}
	if r.ID == "" {
		return models.Track{}, false
	}

	return models.Track{
		ID:         r.ID,
		Title:      r.Attributes.Name,
		Artist:     r.Attributes.ArtistName,
		AlbumTitle: r.Attributes.AlbumName,
		ArtworkURL: r.Attributes.Artwork.URL,
		Genres:     r.Attributes.GenreNames,
	}, true
}

func convertResources(resources []AppleResource, limit int) []models.Track {
	tracks := make([]models.Track, 0, len(resources))
	for _, r := range resources {
		if limit > 0 && len(tracks) >= limit {
			break
		}
		if t, ok := ConvertResource(r); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 25
	case limit > maxAppleMusicPageSize:
		return maxAppleMusicPageSize
	default:
		return limit
	}
}
