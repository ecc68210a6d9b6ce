// Package preprocess implements the stateless comment filter that
// classifies and cleans raw comment batches before analysis.
package preprocess

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

const (
	minCommentLength = 3
	maxCommentLength = 5000
	capsRatioLimit   = 0.7
	emojiRatioLimit  = 0.5
	charRunLimit     = 5
	wordRatioLimit   = 0.3
	// The dominant-word rule only applies to comments long enough for
	// word frequency to mean anything.
	wordRatioMinWords = 5
	jaccardThreshold  = 0.9
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	punctRunPattern   = regexp.MustCompile(`[!?.,;:*]{3,}`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	urlPattern        = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\b\w+\.(com|net|org|io|ly|gg|biz)\b)`)
	maskedPattern     = regexp.MustCompile(`\*{2,}`)
)

// Service classifies comment batches. Pure and stateless: same input
// always yields same output, safe to run concurrently on disjoint
// batches.
type Service struct {
	rules  *compiledRules
	logger arbor.ILogger
}

var _ interfaces.PreprocessService = (*Service)(nil)

// NewService creates a preprocessor with rules loaded per config.
func NewService(cfg *common.PreprocessConfig, logger arbor.ILogger) (*Service, error) {
	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	compiled, err := rules.compile()
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Int("spam_keywords", len(compiled.spamKeywords)).
		Int("toxic_keywords", len(compiled.toxicKeywords)).
		Int("hate_patterns", len(compiled.hatePatterns)).
		Msg("Preprocessor rules loaded")

	return &Service{
		rules:  compiled,
		logger: logger,
	}, nil
}

// PreprocessComments runs the full pipeline over a batch and buckets
// each comment with priority spam > toxic > duplicate > filtered.
func (s *Service) PreprocessComments(comments []models.Comment) *models.PreprocessResult {
	processed := make([]models.Comment, len(comments))
	for i, comment := range comments {
		c := comment
		c.CleanedText = CleanText(c.Text)
		c.NormalizedText = NormalizeText(c.CleanedText)
		c.SpamReasons = s.spamReasons(c.CleanedText, c.NormalizedText)
		c.ToxicReasons = s.toxicReasons(c.CleanedText, c.NormalizedText)
		c.IsSpam = len(c.SpamReasons) > 0
		c.IsToxic = len(c.ToxicReasons) > 0
		processed[i] = c
	}

	duplicates := markDuplicates(processed)

	result := &models.PreprocessResult{
		FilteredComments:  []models.Comment{},
		SpamComments:      []models.Comment{},
		ToxicComments:     []models.Comment{},
		DuplicateComments: []models.Comment{},
	}
	for i, c := range processed {
		switch {
		case c.IsSpam:
			result.SpamComments = append(result.SpamComments, c)
		case c.IsToxic:
			result.ToxicComments = append(result.ToxicComments, c)
		case duplicates[i]:
			result.DuplicateComments = append(result.DuplicateComments, c)
		default:
			result.FilteredComments = append(result.FilteredComments, c)
		}
	}

	result.Stats = models.FilterStats{
		Total:     len(comments),
		Spam:      len(result.SpamComments),
		Toxic:     len(result.ToxicComments),
		Duplicate: len(result.DuplicateComments),
		Filtered:  len(result.FilteredComments),
	}
	return result
}

// CleanText strips markup, filters unsafe characters, collapses
// punctuation runs to an ellipsis and normalizes whitespace.
func CleanText(text string) string {
	if htmlTagPattern.MatchString(text) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = punctRunPattern.ReplaceAllString(text, "...")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeText lowercases and whitespace-collapses cleaned text. Used
// only for matching, never shown to users.
func NormalizeText(cleaned string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(strings.ToLower(cleaned), " "))
}

func isSafeRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return true
	}
	if strings.ContainsRune(`.,!?'"()-:;@#&%/+=_*$`, r) {
		return true
	}
	return isEmoji(r)
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0x2764 || r == 0xFE0F || r == 0x200D: // heart, VS16, ZWJ
		return true
	}
	return false
}

// spamReasons records every matching spam signal; all reasons are
// collected, not just the first.
func (s *Service) spamReasons(cleaned, normalized string) []string {
	var reasons []string

	length := len([]rune(cleaned))
	if length < minCommentLength {
		reasons = append(reasons, "too short")
	}
	if length > maxCommentLength {
		reasons = append(reasons, "too long")
	}

	if ratio, letters := capsRatio(cleaned); letters > 0 && ratio > capsRatioLimit {
		reasons = append(reasons, "excessive capitalization")
	}

	for _, keyword := range s.rules.spamKeywords {
		if strings.Contains(normalized, keyword) {
			reasons = append(reasons, fmt.Sprintf("spam keyword: %s", keyword))
		}
	}

	if hasCharRun(cleaned, charRunLimit) {
		reasons = append(reasons, "repeated characters")
	}
	if hasDominantWord(normalized) {
		reasons = append(reasons, "repeated words")
	}

	if urlPattern.MatchString(normalized) {
		reasons = append(reasons, "contains URL")
	}

	if ratio := emojiRatio(cleaned); ratio > emojiRatioLimit {
		reasons = append(reasons, "excessive emoji")
	}

	return reasons
}

func (s *Service) toxicReasons(cleaned, normalized string) []string {
	var reasons []string

	for _, keyword := range s.rules.toxicKeywords {
		if strings.Contains(normalized, keyword) {
			reasons = append(reasons, fmt.Sprintf("toxic keyword: %s", keyword))
		}
	}

	if maskedPattern.MatchString(cleaned) {
		reasons = append(reasons, "masked profanity")
	}

	for _, pattern := range s.rules.hatePatterns {
		if pattern.MatchString(normalized) {
			reasons = append(reasons, "hate speech pattern")
		}
	}

	return reasons
}

func capsRatio(text string) (float64, int) {
	letters, uppers := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(uppers) / float64(letters), letters
}

func hasCharRun(text string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= limit {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func hasDominantWord(normalized string) bool {
	words := strings.Fields(normalized)
	if len(words) < wordRatioMinWords {
		return false
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	for _, count := range counts {
		if float64(count)/float64(len(words)) > wordRatioLimit {
			return true
		}
	}
	return false
}

func emojiRatio(text string) float64 {
	total, emojis := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isEmoji(r) {
			emojis++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(emojis) / float64(total)
}

// markDuplicates flags the later comment of every pair whose
// normalized word sets exceed the Jaccard threshold. O(n²) pairwise;
// the contract is the threshold, not the algorithm.
func markDuplicates(comments []models.Comment) []bool {
	duplicate := make([]bool, len(comments))
	for i := 0; i < len(comments); i++ {
		if duplicate[i] {
			continue
		}
		setA := wordSet(comments[i].NormalizedText)
		for j := i + 1; j < len(comments); j++ {
			if duplicate[j] {
				continue
			}
			if jaccard(setA, wordSet(comments[j].NormalizedText)) > jaccardThreshold {
				duplicate[j] = true
			}
		}
	}
	return duplicate
}

func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
