// Package analysis provides the engines that turn a filtered comment
// batch into a structured result. Three implementations share one
// interface: a deterministic offline lexicon engine (the default), an
// Anthropic-backed engine and a Gemini-backed engine.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// OfflineEngine scores sentiment with fixed lexicons. Deterministic
// and dependency-free, which makes it the default engine and the one
// the tests run against.
type OfflineEngine struct {
	logger arbor.ILogger
}

var _ interfaces.AnalysisEngine = (*OfflineEngine)(nil)

// NewOfflineEngine creates the lexicon-based engine.
func NewOfflineEngine(logger arbor.ILogger) *OfflineEngine {
	return &OfflineEngine{logger: logger.WithPrefix("analysis.offline")}
}

var positiveWords = map[string]struct{}{
	"love": {}, "great": {}, "good": {}, "amazing": {}, "awesome": {},
	"best": {}, "excellent": {}, "fantastic": {}, "helpful": {},
	"beautiful": {}, "perfect": {}, "thanks": {}, "thank": {}, "nice": {},
	"wonderful": {}, "brilliant": {}, "enjoyed": {}, "like": {}, "liked": {},
}

var negativeWords = map[string]struct{}{
	"hate": {}, "bad": {}, "terrible": {}, "awful": {}, "worst": {},
	"boring": {}, "disappointing": {}, "useless": {}, "horrible": {},
	"waste": {}, "wrong": {}, "annoying": {}, "poor": {}, "dislike": {},
	"broken": {}, "stupid": {}, "ugly": {}, "slow": {},
}

var emotionWords = map[string]string{
	"love": "joy", "happy": "joy", "excited": "joy", "enjoyed": "joy",
	"hate": "anger", "angry": "anger", "furious": "anger",
	"sad": "sadness", "crying": "sadness", "disappointed": "sadness",
	"scared": "fear", "afraid": "fear", "worried": "fear",
	"wow": "surprise", "amazing": "surprise", "incredible": "surprise",
}

// stopWords are excluded from keyword extraction.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "to": {},
	"of": {}, "in": {}, "on": {}, "for": {}, "with": {}, "this": {},
	"that": {}, "it": {}, "its": {}, "i": {}, "you": {}, "my": {},
	"your": {}, "we": {}, "they": {}, "he": {}, "she": {}, "at": {},
	"so": {}, "very": {}, "just": {}, "not": {}, "have": {}, "has": {},
	"do": {}, "did": {}, "what": {}, "when": {}, "how": {}, "all": {},
}

// Provider identifies the engine.
func (e *OfflineEngine) Provider() string { return "offline" }

// Analyze scores each comment against the lexicons and aggregates the
// batch into one result. Output is fully determined by input.
func (e *OfflineEngine) Analyze(ctx context.Context, comments []models.Comment) (*models.AnalysisResult, error) {
	if len(comments) == 0 {
		return nil, fmt.Errorf("no comments to analyze")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		Provider:         e.Provider(),
		CommentsAnalyzed: len(comments),
		AnalyzedAt:       time.Now().UTC(),
	}

	emotionCounts := make(map[string]int)
	wordCounts := make(map[string]int)

	for _, comment := range comments {
		text := comment.NormalizedText
		if text == "" {
			text = strings.ToLower(comment.Text)
		}
		words := strings.Fields(text)

		score := 0
		for _, word := range words {
			word = strings.Trim(word, ".,!?'\")(:;")
			if word == "" {
				continue
			}
			if _, ok := positiveWords[word]; ok {
				score++
			}
			if _, ok := negativeWords[word]; ok {
				score--
			}
			if emotion, ok := emotionWords[word]; ok {
				emotionCounts[emotion]++
			}
			if _, stop := stopWords[word]; !stop && len(word) > 2 {
				wordCounts[word]++
			}
		}

		switch {
		case score > 0:
			result.Sentiment.Positive++
		case score < 0:
			result.Sentiment.Negative++
		default:
			result.Sentiment.Neutral++
		}
	}

	result.Emotions = topKeys(emotionCounts, 3)
	result.Keywords = topKeys(wordCounts, 10)
	result.Themes = topKeys(wordCounts, 3)
	result.Summary = summarize(result.Sentiment, len(comments))

	e.logger.Debug().
		Int("comments", len(comments)).
		Int("positive", result.Sentiment.Positive).
		Int("negative", result.Sentiment.Negative).
		Msg("Offline analysis finished")

	return result, nil
}

// topKeys returns the n highest-count keys, count-descending with
// alphabetical tie-break so output is stable.
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func summarize(s models.SentimentBreakdown, total int) string {
	dominant := "neutral"
	max := s.Neutral
	if s.Positive > max {
		dominant, max = "positive", s.Positive
	}
	if s.Negative > max {
		dominant = "negative"
	}
	return fmt.Sprintf("Analyzed %d comments; overall sentiment is %s (%d positive, %d neutral, %d negative).",
		total, dominant, s.Positive, s.Neutral, s.Negative)
}
