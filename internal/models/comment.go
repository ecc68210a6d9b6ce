package models

import "time"

// Comment is one user comment on a post. Raw fields come from the
// platform clients; Cleaned/Normalized and the classification fields
// are filled by the preprocessor.
type Comment struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Author      string    `json:"author,omitempty"`
	LikeCount   int       `json:"like_count,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`

	CleanedText    string   `json:"cleaned_text,omitempty"`
	NormalizedText string   `json:"-"`
	IsSpam         bool     `json:"is_spam,omitempty"`
	IsToxic        bool     `json:"is_toxic,omitempty"`
	SpamReasons    []string `json:"spam_reasons,omitempty"`
	ToxicReasons   []string `json:"toxic_reasons,omitempty"`
}

// FilterStats accounts for every comment in a preprocessed batch:
// Total = Spam + Toxic + Duplicate + Filtered.
type FilterStats struct {
	Total     int `json:"total"`
	Spam      int `json:"spam"`
	Toxic     int `json:"toxic"`
	Duplicate int `json:"duplicate"`
	Filtered  int `json:"filtered"`
}

// PreprocessResult buckets a comment batch by classification.
// Filtered holds the comments that survived for analysis.
type PreprocessResult struct {
	FilteredComments  []Comment   `json:"filtered_comments"`
	SpamComments      []Comment   `json:"spam_comments"`
	ToxicComments     []Comment   `json:"toxic_comments"`
	DuplicateComments []Comment   `json:"duplicate_comments"`
	Stats             FilterStats `json:"stats"`
}
