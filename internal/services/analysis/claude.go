package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// ClaudeEngine analyzes comment batches with the Anthropic API.
type ClaudeEngine struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.AnalysisEngine = (*ClaudeEngine)(nil)

// NewClaudeEngine creates the Anthropic-backed engine.
func NewClaudeEngine(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or analysis.claude.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	engine := &ClaudeEngine{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   model,
		timeout: timeout,
		logger:  logger.WithPrefix("analysis.claude"),
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Claude analysis engine initialized")

	return engine, nil
}

// Provider identifies the engine.
func (e *ClaudeEngine) Provider() string { return "claude" }

// Analyze sends the batch to the Anthropic API and parses the JSON
// reply into a structured result.
func (e *ClaudeEngine) Analyze(ctx context.Context, comments []models.Comment) (*models.AnalysisResult, error) {
	if len(comments) == 0 {
		return nil, fmt.Errorf("no comments to analyze")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: analysisSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(comments))),
		},
	}

	resp, err := e.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	parsed, err := parseEngineResponse(text.String())
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("comments", len(comments)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude analysis finished")

	return &models.AnalysisResult{
		Provider:         e.Provider(),
		Sentiment:        parsed.Sentiment,
		Emotions:         parsed.Emotions,
		Themes:           parsed.Themes,
		Keywords:         parsed.Keywords,
		Summary:          parsed.Summary,
		CommentsAnalyzed: len(comments),
		AnalyzedAt:       time.Now().UTC(),
	}, nil
}
