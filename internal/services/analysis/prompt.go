package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/sentio/internal/models"
)

// maxPromptComments caps how many comments are sent to a cloud engine
// per request.
const maxPromptComments = 200

const analysisSystemPrompt = `You are a social media comment analyst. ` +
	`Given a list of comments, respond with a single JSON object and nothing else, ` +
	`using this shape: {"sentiment":{"positive":0,"neutral":0,"negative":0},` +
	`"emotions":["..."],"themes":["..."],"keywords":["..."],"summary":"..."}. ` +
	`The three sentiment counts must sum to the number of comments.`

// buildPrompt renders the comment batch into the user message sent to
// a cloud engine.
func buildPrompt(comments []models.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d comments:\n", len(comments))
	for i, comment := range comments {
		if i >= maxPromptComments {
			fmt.Fprintf(&b, "... and %d more comments omitted\n", len(comments)-maxPromptComments)
			break
		}
		text := comment.CleanedText
		if text == "" {
			text = comment.Text
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	return b.String()
}

// engineResponse is the JSON shape cloud engines are instructed to
// return.
type engineResponse struct {
	Sentiment models.SentimentBreakdown `json:"sentiment"`
	Emotions  []string                  `json:"emotions"`
	Themes    []string                  `json:"themes"`
	Keywords  []string                  `json:"keywords"`
	Summary   string                    `json:"summary"`
}

// parseEngineResponse extracts the JSON object from a model reply,
// tolerating surrounding prose or markdown fencing.
func parseEngineResponse(text string) (*engineResponse, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in engine response")
	}

	var parsed engineResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse engine response: %w", err)
	}
	return &parsed, nil
}
