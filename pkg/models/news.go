package models

import "time"

// NewsItem represents single scraped news article
type NewsItem struct {
	PublishedAt time.Time `json:"published_at,omitempty"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Content     string    `json:"content"`
}

// Text returns title and content joined the way they are indexed
func (n NewsItem) Text() string {
	return n.Title + "\n" + n.Content
}
