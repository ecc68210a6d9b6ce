package models

import "time"

// SentimentBreakdown counts comments by overall sentiment.
type SentimentBreakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// AnalysisResult is the durable output of one analysis run. AnalyzedAt
// backs the cache's durable freshness check.
type AnalysisResult struct {
	ID               string             `json:"id" badgerhold:"key"`
	PostID           string             `json:"post_id" badgerhold:"index"`
	JobID            string             `json:"job_id" badgerhold:"index"`
	Provider         string             `json:"provider"`
	Sentiment        SentimentBreakdown `json:"sentiment"`
	Emotions         []string           `json:"emotions,omitempty"`
	Themes           []string           `json:"themes,omitempty"`
	Keywords         []string           `json:"keywords,omitempty"`
	Summary          string             `json:"summary,omitempty"`
	CommentsAnalyzed int                `json:"comments_analyzed"`
	FilterStats      FilterStats        `json:"filter_stats"`
	AnalyzedAt       time.Time          `json:"analyzed_at"`
}

// Post is the platform-agnostic view of a social media post.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	CommentCount int       `json:"comment_count,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
}

// PageOptions controls one page of a platform listing call.
type PageOptions struct {
	Limit     int
	PageToken string
}

// PostPage is one page of a user's posts. An empty NextPageToken means
// the listing is exhausted.
type PostPage struct {
	Posts         []Post `json:"posts"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// CommentPage is one page of a post's comments.
type CommentPage struct {
	Comments      []Comment `json:"comments"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// RateLimitInfo is a provider's reported rate-limit window.
type RateLimitInfo struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"reset_time,omitempty"`
}

// CacheStats is an observability snapshot of the result cache.
type CacheStats struct {
	TotalEntries   int     `json:"total_entries"`
	ValidEntries   int     `json:"valid_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	MaxSize        int     `json:"max_size"`
	HitRate        float64 `json:"hit_rate"`
}
