package domain

import "time"

// RawArticle is a candidate headline as returned by an upstream partition.
type RawArticle struct {
	Title       string
	URL         string
	Description string
	Content     string
	ImageURL    string
	PublishedAt time.Time
	Partition   string // e.g. "newsapi/us" or "feed/nature"
}

// Fingerprint is the dedup key derived from an article's title and URL.
type Fingerprint string

// PublishableArticle is the rewritten article ready to be posted.
type PublishableArticle struct {
	Title      string
	Body       string
	SourceURL  string
	SEOSummary string
}

// Post is the remote post created by a successful publish.
type Post struct {
	ID       string
	URL      string
	Title    string
	Enriched bool
}

type PublishedEvent struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Title       string      `json:"title"`
	SourceURL   string      `json:"source_url"`
	PostID      string      `json:"post_id"`
	PostURL     string      `json:"post_url"`
	PublishedAt time.Time   `json:"published_at"`
}
