// Scraped fallback implementation of [NewsSource] for NME's music news listing
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/mdash/internal/metrics"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/shared"
)

const (
	nmeURL            = "https://www.nme.com/music"
	nmeSource         = "nme"
	nmeSelector       = "h3.entry-title a"
	nmeDescription    = "Click to read more about this music news article from NME."
	browserUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15"
	maxScrapeBodySize = 4 << 20
)

// NMEScraper implements [NewsSource] by scraping article headlines from NME.
//
// The listing carries no dates or descriptions, so every article is stamped with the fetch time and a placeholder description.
type NMEScraper struct {
	pageURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewNMEScraper creates a scraper for pageURL, defaulting to NME's music section.
func NewNMEScraper(pageURL string, client *http.Client) *NMEScraper {
	if pageURL == "" {
		pageURL = nmeURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NMEScraper{pageURL: pageURL, httpClient: client, now: time.Now}
}

func (s *NMEScraper) Name() string {
	return "NME"
}

// Articles fetches the listing page and keeps headlines whose title or description contain the search term and the genre.
func (s *NMEScraper) Articles(ctx context.Context, genre, searchTerm string) ([]models.NewsArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(nmeSource, 0, start)
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(nmeSource, resp.StatusCode, start)

	if err := checkResponse("nme", resp, nil); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxScrapeBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse html: %v", shared.ErrInvalidResponse, err)
	}

	return FilterArticles(s.extract(doc), genre, searchTerm), nil
}

func (s *NMEScraper) extract(doc *goquery.Document) []models.NewsArticle {
	base, _ := url.Parse(s.pageURL)
	fetched := s.now()

	var articles []models.NewsArticle
	doc.Find(nmeSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		title := strings.TrimSpace(sel.Text())
		if !ok || title == "" {
			return
		}

		link, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		articles = append(articles, models.NewsArticle{
			ID:          fmt.Sprintf("nme-%d", len(articles)),
			Title:       title,
			Description: nmeDescription,
			URL:         link.String(),
			PublishedAt: fetched,
			SourceName:  "NME",
		})
	})
	return articles
}

// FilterArticles keeps articles whose title or description contain every non-empty term, ignoring case.
func FilterArticles(articles []models.NewsArticle, terms ...string) []models.NewsArticle {
	var needles []string
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			needles = append(needles, t)
		}
	}
	if len(needles) == 0 {
		return articles
	}

	filtered := make([]models.NewsArticle, 0, len(articles))
	for _, a := range articles {
		haystack := strings.ToLower(a.Title + "\n" + a.Description)
		matches := true
		for _, n := range needles {
			if !strings.Contains(haystack, n) {
				matches = false
				break
			}
		}
		if matches {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
