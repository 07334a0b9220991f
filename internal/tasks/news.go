package tasks

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/metrics"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/services"
	"github.com/desertthunder/mdash/internal/shared"
	"golang.org/x/sync/errgroup"
)

// BranchError reports a news source that failed during aggregation.
type BranchError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BranchError) Error() string {
	return e.Source + ": " + e.Message
}

func (e *BranchError) Unwrap() error {
	return e.Err
}

// NewsResult is the merged output of every news source.
//
// Errors lists the failed sources so callers can show an inline message; it never makes the result unusable.
type NewsResult struct {
	Articles []models.NewsArticle `json:"articles"`
	Errors   []*BranchError       `json:"errors"`
}

// NewsAggregator fetches music news from several sources concurrently.
type NewsAggregator struct {
	sources []services.NewsSource
	retry   shared.RetryPolicy
	logger  *log.Logger
}

// NewNewsAggregator creates a [NewsAggregator]. Sources are queried in parallel on every call.
func NewNewsAggregator(logger *log.Logger, retry shared.RetryPolicy, sources ...services.NewsSource) *NewsAggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &NewsAggregator{sources: sources, retry: retry, logger: logger}
}

// GetMusicNews queries every source and merges the results, newest first.
//
// Branches are isolated: a failing source contributes no articles and an entry in Errors.
// Articles are not de-duplicated across sources.
func (n *NewsAggregator) GetMusicNews(ctx context.Context, genre, searchTerm string) *NewsResult {
	defer metrics.ObserveAggregation("news", time.Now())

	var g errgroup.Group
	articles := make([][]models.NewsArticle, len(n.sources))
	errs := make([]error, len(n.sources))

	for i, source := range n.sources {
		g.Go(func() error {
			policy := countRetries(n.retry, "news_"+source.Name(), n.logger)
			articles[i], errs[i] = shared.WithRetry(ctx, policy, func(ctx context.Context) ([]models.NewsArticle, error) {
				return source.Articles(ctx, genre, searchTerm)
			})
			return nil
		})
	}
	_ = g.Wait()

	result := &NewsResult{Articles: []models.NewsArticle{}, Errors: []*BranchError{}}
	for i, source := range n.sources {
		if err := errs[i]; err != nil {
			metrics.BranchFailures.WithLabelValues("news_" + source.Name()).Inc()
			n.logger.Warn("news source failed", "branch", source.Name(), "error", err)
			result.Errors = append(result.Errors, &BranchError{Source: source.Name(), Message: err.Error(), Err: err})
			continue
		}
		metrics.Articles.WithLabelValues(source.Name()).Add(float64(len(articles[i])))
		result.Articles = append(result.Articles, articles[i]...)
	}

	slices.SortStableFunc(result.Articles, func(a, b models.NewsArticle) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return result
}
