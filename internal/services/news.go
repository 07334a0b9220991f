// NewsAPI implementation of [NewsSource]
//
// Response types based on https://newsapi.org/docs/endpoints/everything
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mdash/internal/metrics"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
	"golang.org/x/time/rate"
)

const (
	newsAPIBaseURL        = "https://newsapi.org/v2"
	newsAPISource         = "newsapi"
	newsPageSize          = 20
	noDescription         = "No description available"
	rateLimitRemainingHdr = "X-RateLimit-Remaining"
)

// NewsGenres is the fixed list of topics offered for filtering news.
var NewsGenres = []string{
	"Rock", "Pop", "Hip-Hop", "Jazz", "Classical", "Electronic", "Country", "R&B",
	"Folk", "Metal", "Indie", "Alternative", "Festival", "Awards", "Technology",
}

type newsAPISourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewsAPIArticle is a single article in a NewsAPI response.
type NewsAPIArticle struct {
	Source      newsAPISourceRef `json:"source"`
	Author      string           `json:"author"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	URL         string           `json:"url"`
	URLToImage  string           `json:"urlToImage"`
	PublishedAt string           `json:"publishedAt"`
	Content     string           `json:"content"`
}

// NewsAPIResponse is the envelope returned by /everything.
type NewsAPIResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
	Code         string           `json:"code,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// NewsAPIStatus reports the availability of the news API and the remaining request quota.
type NewsAPIStatus struct {
	Available  bool `json:"available"`
	StatusCode int  `json:"statusCode"`
	// Remaining is -1 when the response carried no quota header.
	Remaining int `json:"remaining"`
}

// NewsAPIService implements [NewsSource] for newsapi.org keyword search.
//
// Requests are spaced at least one second apart by a shared [rate.Limiter].
type NewsAPIService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewNewsAPIService creates a NewsAPI client.
func NewNewsAPIService(apiKey, baseURL string, client *http.Client) *NewsAPIService {
	if baseURL == "" {
		baseURL = newsAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &NewsAPIService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		now:        time.Now,
	}
}

// SetLimiter replaces the request spacing limiter.
func (n *NewsAPIService) SetLimiter(l *rate.Limiter) {
	n.limiter = l
}

func (n *NewsAPIService) Name() string {
	return "NewsAPI"
}

// NewsQuery joins "music" with the optional genre and search term.
func NewsQuery(genre, searchTerm string) string {
	parts := []string{"music"}
	for _, p := range []string{genre, searchTerm} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (n *NewsAPIService) get(ctx context.Context, q string, pageSize int) (*http.Response, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("%w: news api key not configured", shared.ErrMissingCredentials)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("apiKey", n.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(newsAPISource, 0, start)
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	metrics.ObserveUpstream(newsAPISource, resp.StatusCode, start)
	return resp, nil
}

// Articles searches NewsAPI for music news, newest first.
func (n *NewsAPIService) Articles(ctx context.Context, genre, searchTerm string) ([]models.NewsArticle, error) {
	resp, err := n.get(ctx, NewsQuery(genre, searchTerm), newsPageSize)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if err := checkResponse("news api", resp, newsErrorMessage); err != nil {
			return nil, err
		}
		return nil, &shared.APIError{Source: "news api", StatusCode: resp.StatusCode}
	}

	var response NewsAPIResponse
	if err := decodeJSON(resp.Body, &response); err != nil {
		return nil, err
	}
	if response.Status == "error" {
		return nil, &shared.APIError{Source: "news api", StatusCode: resp.StatusCode, Message: response.Message}
	}

	articles := make([]models.NewsArticle, 0, len(response.Articles))
	for _, a := range response.Articles {
		if article, ok := n.convert(a); ok {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

// Status issues a one-article query and reports whether the API answered and how much quota is left.
func (n *NewsAPIService) Status(ctx context.Context) (*NewsAPIStatus, error) {
	resp, err := n.get(ctx, "music", 1)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	status := &NewsAPIStatus{
		Available:  resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
		Remaining:  -1,
	}
	if v := resp.Header.Get(rateLimitRemainingHdr); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			status.Remaining = remaining
		}
	}
	return status, nil
}

// convert maps an API article, skipping those without an absolute URL.
func (n *NewsAPIService) convert(a NewsAPIArticle) (models.NewsArticle, bool) {
	u, err := url.Parse(strings.TrimSpace(a.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.NewsArticle{}, false
	}

	description := strings.TrimSpace(a.Description)
	if description == "" {
		description = noDescription
	}

	published, err := time.Parse(time.RFC3339, a.PublishedAt)
	if err != nil {
		published = n.now()
	}

	return models.NewsArticle{
		ID:          ArticleID(u.String()),
		Title:       a.Title,
		Description: description,
		URL:         u.String(),
		ImageURL:    a.URLToImage,
		PublishedAt: published,
		SourceName:  a.Source.Name,
	}, true
}

// ArticleID derives a stable id from an article URL: the scheme is dropped and slashes become underscores.
func ArticleID(rawURL string) string {
	id := rawURL
	if i := strings.Index(id, "://"); i >= 0 {
		id = id[i+3:]
	}
	return strings.ReplaceAll(id, "/", "_")
}

func newsErrorMessage(body []byte) string {
	var response NewsAPIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ""
	}
	return response.Message
}
