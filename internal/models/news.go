package models

import "time"

// NewsArticle is a music news item from either the keyword search API or the scraped fallback.
//
// IDs are only unique within a source; the same story may appear once per source.
type NewsArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	SourceName  string    `json:"source"`
}
