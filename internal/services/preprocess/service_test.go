package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/models"
)

func newTestPreprocessor(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(&common.PreprocessConfig{}, arbor.NewLogger())
	require.NoError(t, err)
	return s
}

func makeComments(texts ...string) []models.Comment {
	comments := make([]models.Comment, len(texts))
	for i, text := range texts {
		comments[i] = models.Comment{ID: string(rune('a' + i)), Text: text}
	}
	return comments
}

func TestPreprocessComments_Buckets(t *testing.T) {
	s := newTestPreprocessor(t)

	result := s.PreprocessComments(makeComments(
		"SUBSCRIBE NOW!!!",
		"great video",
		"great video",
	))

	assert.Equal(t, 3, result.Stats.Total)
	assert.Equal(t, 1, result.Stats.Spam)
	assert.Equal(t, 0, result.Stats.Toxic)
	assert.Equal(t, 1, result.Stats.Duplicate)
	assert.Equal(t, 1, result.Stats.Filtered)

	require.Len(t, result.FilteredComments, 1)
	assert.Equal(t, "great video", result.FilteredComments[0].Text)
}

func TestPreprocessComments_SpamWinsOverToxic(t *testing.T) {
	s := newTestPreprocessor(t)

	// Contains both a spam keyword and a toxic keyword; spam buckets first.
	result := s.PreprocessComments(makeComments("subscribe now you idiot"))

	assert.Equal(t, 1, result.Stats.Spam)
	assert.Equal(t, 0, result.Stats.Toxic)
	require.Len(t, result.SpamComments, 1)
	assert.True(t, result.SpamComments[0].IsSpam)
	assert.True(t, result.SpamComments[0].IsToxic)
}

func TestPreprocessComments_Deterministic(t *testing.T) {
	s := newTestPreprocessor(t)
	input := makeComments(
		"loved this so much",
		"FREE MONEY at www.scam.biz",
		"loved this so much",
		"what a terrible take, honestly",
	)

	first := s.PreprocessComments(input)
	second := s.PreprocessComments(input)

	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, len(first.FilteredComments), len(second.FilteredComments))
}

func TestPreprocessComments_AllReasonsCollected(t *testing.T) {
	s := newTestPreprocessor(t)

	result := s.PreprocessComments(makeComments("BUY NOW CHEAP PILLS AT WWW.SPAM.COM!!!"))

	require.Len(t, result.SpamComments, 1)
	reasons := result.SpamComments[0].SpamReasons
	assert.GreaterOrEqual(t, len(reasons), 2, "expected multiple spam signals, got %v", reasons)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips html", "<b>hello</b> world", "hello world"},
		{"collapses punctuation runs", "wow!!!!!", "wow..."},
		{"normalizes whitespace", "  so \t many\n\nspaces  ", "so many spaces"},
		{"keeps allowed punctuation", "it's fine, really (honest)", "it's fine, really (honest)"},
		{"keeps emoji", "nice 🔥", "nice 🔥"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeText("Hello   WORLD"))
}

func TestSpamSignals(t *testing.T) {
	s := newTestPreprocessor(t)

	spam := []string{
		"ab", // too short
		strings.Repeat("x", maxCommentLength+1),
		"THIS IS ALL CAPS SHOUTING",
		"subscribe to my channel",
		"soooooo good",
		"buy buy buy buy buy buy",
		"check www.example.com for deals",
		"🔥🔥🔥🔥🔥",
	}
	for _, text := range spam {
		cleaned := CleanText(text)
		reasons := s.spamReasons(cleaned, NormalizeText(cleaned))
		assert.NotEmpty(t, reasons, "expected spam signal for %q", text)
	}

	cleaned := CleanText("this was a genuinely thoughtful video essay")
	assert.Empty(t, s.spamReasons(cleaned, NormalizeText(cleaned)))
}

func TestToxicSignals(t *testing.T) {
	s := newTestPreprocessor(t)

	toxic := []string{
		"you are an idiot",
		"what the f** is this",
	}
	for _, text := range toxic {
		cleaned := CleanText(text)
		reasons := s.toxicReasons(cleaned, NormalizeText(cleaned))
		assert.NotEmpty(t, reasons, "expected toxic signal for %q", text)
	}

	cleaned := CleanText("respectfully disagree with this one")
	assert.Empty(t, s.toxicReasons(cleaned, NormalizeText(cleaned)))
}

func TestJaccard(t *testing.T) {
	a := wordSet("the quick brown fox")
	b := wordSet("the quick brown fox")
	assert.Equal(t, 1.0, jaccard(a, b))

	c := wordSet("completely different words here")
	assert.Equal(t, 0.0, jaccard(a, c))

	// Empty sets are identical by convention.
	assert.Equal(t, 1.0, jaccard(wordSet(""), wordSet("")))
	assert.Equal(t, 0.0, jaccard(a, wordSet("")))
}

func TestMarkDuplicates_FirstSurvives(t *testing.T) {
	s := newTestPreprocessor(t)

	result := s.PreprocessComments(makeComments(
		"this song is amazing",
		"this song is amazing",
		"this song is amazing",
	))

	assert.Equal(t, 1, result.Stats.Filtered)
	assert.Equal(t, 2, result.Stats.Duplicate)
}

func TestMarkDuplicates_BelowThresholdKept(t *testing.T) {
	s := newTestPreprocessor(t)

	result := s.PreprocessComments(makeComments(
		"this song is amazing",
		"this song is amazing and the video is stunning too",
	))

	assert.Equal(t, 2, result.Stats.Filtered)
	assert.Equal(t, 0, result.Stats.Duplicate)
}
